package nrepl

import (
	"fmt"

	"github.com/hashicorp/go-uuid"
	"github.com/lumenlang/lumen/internal/analyzer"
	"github.com/lumenlang/lumen/internal/compiler"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/nsenv"
	"github.com/lumenlang/lumen/internal/reader"
	"github.com/lumenlang/lumen/internal/stdlib"
	"github.com/lumenlang/lumen/internal/vm"
)

// Session binds one nREPL client connection to an environment, a namespace
// it currently evaluates against, and the id the `clone` op handed back —
// the same "session" concept nREPL clients track across requests.
type Session struct {
	ID  string
	env *nsenv.Environment
	vm  *vm.VM
	ns  *nsenv.Namespace
	reg *stdlib.Registry
}

// NewSession boots a fresh environment (heap, VM, stdlib registry) and
// returns a Session evaluating in the "user" namespace — the same
// construction a one-shot `-e`/file-argument CLI invocation uses, since an
// nREPL connection is just a long-lived instance of the same pipeline.
func NewSession(heapSize int64) (*Session, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return nil, fmt.Errorf("nrepl: generating session id: %w", err)
	}
	heap := gc.New(heapSize, nil)
	env := nsenv.NewEnvironment(heap, nil)
	v := vm.New(env)
	v.Bootstrap()
	reg := stdlib.DefaultRegistry()
	if err := reg.Bootstrap(env, v); err != nil {
		return nil, fmt.Errorf("nrepl: bootstrapping stdlib: %w", err)
	}
	ns := env.FindOrCreateNamespace("user")
	for _, coreVar := range env.FindOrCreateNamespace("lumen.core").Publics() {
		ns.Refer(coreVar.Name(), coreVar)
	}
	return &Session{ID: id, env: env, vm: v, ns: ns, reg: reg}, nil
}

// Clone returns a new Session sharing nothing with s (a fresh environment),
// matching the nREPL `clone` contract clients rely on to isolate concurrent
// evaluations; sharing heap/namespaces across clones is a possible future
// refinement this thin implementation doesn't need.
func (s *Session) Clone() (*Session, error) {
	return NewSession(1 << 24)
}

// Handle dispatches req against the session and returns the response
// sequence a real nREPL client would see for that op (usually a value/out
// message followed by a terminal status message).
func (s *Session) Handle(req Request) []Response {
	switch req.Op {
	case OpEval:
		return s.handleEval(req)
	case OpDescribe:
		return []Response{{
			ID:      req.ID,
			Session: s.ID,
			Status:  []string{"done"},
			Value:   "ops: eval, describe, clone, close",
		}}
	case OpClone:
		child, err := s.Clone()
		if err != nil {
			return []Response{{ID: req.ID, Session: s.ID, Err: err.Error(), Status: []string{"done", "error"}}}
		}
		return []Response{{ID: req.ID, Session: child.ID, Status: []string{"done"}}}
	case OpClose:
		return []Response{{ID: req.ID, Session: s.ID, Status: []string{"done"}}}
	default:
		return []Response{{ID: req.ID, Session: s.ID, Err: fmt.Sprintf("unknown op %q", req.Op), Status: []string{"done", "error", "unknown-op"}}}
	}
}

func (s *Session) handleEval(req Request) []Response {
	result, err := s.eval(req.Code)
	if err != nil {
		return []Response{{ID: req.ID, Session: s.ID, Ns: s.ns.Name(), Err: err.Error(), Status: []string{"done", "error"}}}
	}
	return []Response{
		{ID: req.ID, Session: s.ID, Ns: s.ns.Name(), Value: result},
		{ID: req.ID, Session: s.ID, Status: []string{"done"}},
	}
}

// eval runs every top-level form in src against the session's namespace and
// returns the last form's printed value — one read/analyze/compile/run pass
// per form, mirroring internal/stdlib's own embedded-source evaluation loop.
func (s *Session) eval(src string) (string, error) {
	r := reader.New(src, "nrepl-eval", s.env.Heap, s.env.Keywords, reader.NewMetaTable(), reader.NewTagTable())
	forms, err := r.ReadAll()
	if err != nil {
		return "", err
	}
	comp := compiler.New(s.env.Heap)
	var last string
	for _, form := range forms {
		a := analyzer.New(s.env, s.ns, s.vm.ThreadID())
		node, numLocals, err := a.AnalyzeTopLevel(form)
		if err != nil {
			return "", err
		}
		unit, err := comp.CompileTopLevel(node, numLocals)
		if err != nil {
			return "", err
		}
		v, err := s.vm.RunTopLevel(unit, s.ns)
		if err != nil {
			return "", err
		}
		last = v.String()
	}
	return last, nil
}
