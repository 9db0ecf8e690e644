package nrepl

import (
	"bufio"
	"net"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Server accepts nREPL client connections and dispatches bencode-framed
// eval/describe/clone/close messages against per-connection Sessions. This
// is the thin wire-shape server spec §6.4 asks for, not a production
// implementation: one goroutine per connection, no auth, no interrupt op.
type Server struct {
	ln  net.Listener
	log hclog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewServer(ln net.Listener, log hclog.Logger) *Server {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Server{ln: ln, log: log.Named("nrepl"), sessions: make(map[string]*Session)}
}

// Serve accepts connections until the listener closes, handling each on
// its own goroutine.
func (srv *Server) Serve() error {
	for {
		conn, err := srv.ln.Accept()
		if err != nil {
			return err
		}
		go srv.handleConn(conn)
	}
}

func (srv *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	root, err := NewSession(1 << 24)
	if err != nil {
		srv.log.Error("bootstrapping session failed", "error", err)
		return
	}
	srv.registerSession(root)
	defer srv.dropSession(root.ID)

	r := bufio.NewReader(conn)
	for {
		req, err := decodeRequest(r)
		if err != nil {
			return
		}
		sess := srv.sessionFor(req.Session, root)

		var responses []Response
		if req.Op == OpClone {
			responses = srv.handleClone(sess, req)
		} else {
			responses = sess.Handle(req)
		}

		for _, resp := range responses {
			encoded, err := encodeToString(resp.toBencodeMap())
			if err != nil {
				srv.log.Error("encoding response failed", "error", err)
				return
			}
			if _, err := conn.Write([]byte(encoded)); err != nil {
				return
			}
		}
		if req.Op == OpClose {
			return
		}
	}
}

// handleClone clones sess, registers the child under its own id so a later
// request naming that session id resolves to it, and reports the child's
// id back to the client — the id nREPL clients use on every subsequent
// request to keep evaluating in the cloned namespace.
func (srv *Server) handleClone(sess *Session, req Request) []Response {
	child, err := sess.Clone()
	if err != nil {
		return []Response{{ID: req.ID, Session: sess.ID, Err: err.Error(), Status: []string{"done", "error"}}}
	}
	srv.registerSession(child)
	return []Response{{ID: req.ID, Session: child.ID, Status: []string{"done"}}}
}

func (srv *Server) registerSession(s *Session) {
	srv.mu.Lock()
	srv.sessions[s.ID] = s
	srv.mu.Unlock()
}

func (srv *Server) dropSession(id string) {
	srv.mu.Lock()
	delete(srv.sessions, id)
	srv.mu.Unlock()
}

func (srv *Server) sessionFor(id string, fallback *Session) *Session {
	if id == "" {
		return fallback
	}
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if s, ok := srv.sessions[id]; ok {
		return s
	}
	return fallback
}
