// Command lumen is the runtime's entrypoint: it reads a build artifact's
// embedded source off its own executable if one is present (spec §6.2),
// otherwise parses a thin slice of the CLI surface spec §6.1 names and
// drives the reader/analyzer/compiler/VM pipeline directly. Full flag
// parsing/dispatch, the `build` subcommand's packaging step, `test`, and
// `new` are explicitly out of scope (spec.md §1); this file wires the
// pieces that are in scope (`-e`, a file argument, `--nrepl-server`, the
// bare interactive REPL) rather than reimplementing a command framework no
// library in this dependency graph offers — see DESIGN.md.
package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/lumenlang/lumen/internal/analyzer"
	"github.com/lumenlang/lumen/internal/buildartifact"
	"github.com/lumenlang/lumen/internal/compiler"
	"github.com/lumenlang/lumen/internal/config"
	"github.com/lumenlang/lumen/internal/gc"
	"github.com/lumenlang/lumen/internal/nrepl"
	"github.com/lumenlang/lumen/internal/nsenv"
	"github.com/lumenlang/lumen/internal/reader"
	"github.com/lumenlang/lumen/internal/snapshot"
	"github.com/lumenlang/lumen/internal/stdlib"
	"github.com/lumenlang/lumen/internal/value"
	"github.com/lumenlang/lumen/internal/vm"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if src, err := buildartifact.ReadSelf(); err == nil {
		return runSource(string(src), stdout, stderr)
	}

	opts := parseArgs(args)
	if opts.err != nil {
		fmt.Fprintln(stderr, opts.err)
		return 1
	}
	if opts.treeWalk {
		fmt.Fprintln(stderr, "lumen: --tree-walk backend is not implemented in this build")
		return 1
	}

	switch {
	case opts.nreplPort != "":
		return runNREPLServer(opts, stderr)
	case opts.expr != "":
		return evalAndPrint(opts, opts.expr, "<-e>", stdout, stderr)
	case opts.path != "":
		src, err := os.ReadFile(opts.path)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return evalAndPrint(opts, string(src), opts.path, stdout, stderr)
	case opts.subcommand != "":
		fmt.Fprintf(stderr, "lumen: %q subcommand is not implemented in this build\n", opts.subcommand)
		return 1
	default:
		return repl(opts, stdin, stdout, stderr)
	}
}

// cliOptions is the thin slice of spec §6.1's surface this binary actually
// dispatches: debug flags, `-e`, a single file path, `--nrepl-server`. Flag
// combinations or subcommands beyond this are reported, not silently
// ignored, per the Non-goal this file's doc comment names.
type cliOptions struct {
	treeWalk     bool
	dumpBytecode bool
	expr         string
	path         string
	nreplPort    string
	subcommand   string
	snapshotPath string
	err          error
}

func parseArgs(args []string) cliOptions {
	var opts cliOptions
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--tree-walk":
			opts.treeWalk = true
		case a == "--dump-bytecode":
			opts.dumpBytecode = true
		case a == "-e":
			i++
			if i >= len(args) {
				opts.err = fmt.Errorf("lumen: -e requires an expression argument")
				return opts
			}
			opts.expr = args[i]
		case a == "--nrepl-server":
			opts.nreplPort = "7888"
		case strings.HasPrefix(a, "--port="):
			opts.nreplPort = strings.TrimPrefix(a, "--port=")
		case strings.HasPrefix(a, "--snapshot="):
			opts.snapshotPath = strings.TrimPrefix(a, "--snapshot=")
		case a == "build" || a == "test" || a == "new":
			opts.subcommand = a
			return opts
		case strings.HasPrefix(a, "-"):
			opts.err = fmt.Errorf("lumen: unrecognized flag %q", a)
			return opts
		default:
			// The first positional argument is the script path; the
			// arguments after it are not parsed as flags.
			opts.path = a
			return opts
		}
	}
	return opts
}

// newRuntime builds the heap/environment/VM triple every entrypoint shares,
// restoring a bootstrap snapshot (spec §6.3) when one is configured and its
// format matches, and falling back to a normal stdlib bootstrap otherwise.
func newRuntime(opts cliOptions) (*nsenv.Environment, *vm.VM, error) {
	var cfgOpts []config.Option
	if opts.dumpBytecode {
		cfgOpts = append(cfgOpts, config.WithDumpBytecode())
	}
	if opts.snapshotPath != "" {
		cfgOpts = append(cfgOpts, config.WithSnapshotPath(opts.snapshotPath))
	}
	cfg := config.New(cfgOpts...)

	var env *nsenv.Environment
	var machine *vm.VM
	restored := false

	if cfg.SnapshotPath != "" {
		store, err := snapshot.NewBoltStore(cfg.Log, cfg.SnapshotPath)
		if err == nil {
			defer store.Close()
			if snap, ok, loadErr := snapshot.Load(store); loadErr == nil && ok {
				heap := gc.New(cfg.GCThreshold, cfg.Log)
				if restoredEnv, restoreErr := snapshot.Restore(heap, cfg.Log, snap); restoreErr == nil {
					env = restoredEnv
					machine = vm.New(env)
					machine.Bootstrap()
					restored = true
				}
			}
		}
	}

	if !restored {
		heap := gc.New(cfg.GCThreshold, cfg.Log)
		env = nsenv.NewEnvironment(heap, cfg.Log)
		machine = vm.New(env)
		machine.Bootstrap()
		reg := stdlib.DefaultRegistry()
		if err := reg.Bootstrap(env, machine); err != nil {
			return nil, nil, err
		}
		if cfg.SnapshotPath != "" {
			if store, err := snapshot.NewBoltStore(cfg.Log, cfg.SnapshotPath); err == nil {
				_ = snapshot.Save(store, snapshot.Capture(env))
				store.Close()
			}
		}
	}

	return env, machine, nil
}

func evalAndPrint(opts cliOptions, src, sourceName string, stdout, stderr io.Writer) int {
	env, machine, err := newRuntime(opts)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	ns := env.FindOrCreateNamespace("user")
	referCore(env, ns)

	results, err := evalAll(env, machine, ns, src, sourceName)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	for _, r := range results {
		fmt.Fprintln(stdout, r.String())
	}
	return 0
}

func runSource(src string, stdout, stderr io.Writer) int {
	return evalAndPrint(cliOptions{}, src, "<build-artifact>", stdout, stderr)
}

func referCore(env *nsenv.Environment, ns *nsenv.Namespace) {
	core := env.FindOrCreateNamespace("lumen.core")
	for _, v := range core.Publics() {
		ns.Refer(v.Name(), v)
	}
}

func evalAll(env *nsenv.Environment, machine *vm.VM, ns *nsenv.Namespace, src, sourceName string) ([]value.Value, error) {
	r := reader.New(src, sourceName, env.Heap, env.Keywords, reader.NewMetaTable(), reader.NewTagTable())
	forms, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	comp := compiler.New(env.Heap)
	out := make([]value.Value, 0, len(forms))
	for _, form := range forms {
		a := analyzer.New(env, ns, machine.ThreadID())
		node, numLocals, err := a.AnalyzeTopLevel(form)
		if err != nil {
			return nil, err
		}
		unit, err := comp.CompileTopLevel(node, numLocals)
		if err != nil {
			return nil, err
		}
		v, err := machine.RunTopLevel(unit, ns)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func repl(opts cliOptions, stdin io.Reader, stdout, stderr io.Writer) int {
	env, machine, err := newRuntime(opts)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	ns := env.FindOrCreateNamespace("user")
	referCore(env, ns)

	scanner := bufio.NewScanner(stdin)
	fmt.Fprint(stdout, "user=> ")
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) != "" {
			results, err := evalAll(env, machine, ns, line, "<repl>")
			if err != nil {
				fmt.Fprintln(stderr, err)
			} else {
				for _, r := range results {
					fmt.Fprintln(stdout, r.String())
				}
			}
		}
		fmt.Fprint(stdout, "user=> ")
	}
	fmt.Fprintln(stdout)
	return 0
}

func runNREPLServer(opts cliOptions, stderr io.Writer) int {
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", opts.nreplPort))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer ln.Close()
	srv := nrepl.NewServer(ln, hclog.NewNullLogger())
	if err := srv.Serve(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}
