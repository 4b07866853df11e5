// Package simserver implements the §6 "Executor <-> scheduler" boundary
// as a websocket server: each connected client is one external scheduler
// session driving one process's Executor, streaming exec.Event records
// out and accepting resume/time-advance control messages in, generalizing
// a plain text-message broadcast into a typed event/control protocol.
package simserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"lhd/internal/exec"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WireEvent is the outbound JSON shape of an exec.Event: SignalName
// substitutes for ir.Value (which carries no stable wire identity) since
// the scheduler only needs to know which named output changed.
type WireEvent struct {
	PicoSeconds uint64 `json:"picoseconds"`
	Delta       uint64 `json:"delta"`
	SignalName  string `json:"signal"`
	Value       string `json:"value"`
}

// ControlMessage is the inbound shape a scheduler sends to resume a
// suspended session or advance simulation time.
type ControlMessage struct {
	Type        string `json:"type"` // "resume" | "advance"
	PicoSeconds uint64 `json:"picoseconds,omitempty"`
	Delta       uint64 `json:"delta,omitempty"`
}

// Session is one scheduler's connection, stamped with a UUID so
// reconnects can be correlated to the same simulation run.
type Session struct {
	ID      string
	conn    *websocket.Conn
	mu      sync.Mutex
	closed  bool
	started time.Time

	eventCount int
}

// Emit implements exec.EventSink: it marshals ev to a WireEvent and
// writes it as a JSON text frame. A write error marks the session closed
// so subsequent Emit calls are silently dropped rather than panicking
// into a stopped executor's hot path.
func (s *Session) Emit(ev exec.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	name := ev.Signal.Name()
	if name == "" {
		name = fmt.Sprintf("%p", ev.Signal)
	}
	wire := WireEvent{
		PicoSeconds: ev.Time.Picoseconds,
		Delta:       ev.Time.Delta,
		SignalName:  name,
		Value:       ev.Value.String(),
	}
	s.eventCount++
	if err := s.conn.WriteJSON(wire); err != nil {
		s.closed = true
	}
}

// ReadControl blocks for the next ControlMessage from the scheduler.
func (s *Session) ReadControl() (ControlMessage, error) {
	var msg ControlMessage
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		return msg, err
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	return msg, nil
}

// Close terminates the underlying connection.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.conn.Close()
}

// Status renders a human-readable summary of the session's progress: how
// long it has been running and how many events it has emitted, formatted
// with go-humanize for a terminal-facing status line.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("session %s: %s events over %s", s.ID,
		humanize.Comma(int64(s.eventCount)), humanize.Time(s.started))
}

// Server accepts websocket connections and hands each one a fresh
// Session, tracked by ID so a caller can broadcast or look one up.
type Server struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewServer creates an empty Server.
func NewServer() *Server {
	return &Server{sessions: make(map[string]*Session)}
}

// Accept upgrades an incoming HTTP request to a websocket connection and
// registers a new Session for it.
func (srv *Server) Accept(w http.ResponseWriter, r *http.Request) (*Session, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	sess := &Session{ID: uuid.New().String(), conn: conn, started: time.Now()}
	srv.mu.Lock()
	srv.sessions[sess.ID] = sess
	srv.mu.Unlock()
	return sess, nil
}

// Session looks up a tracked session by ID.
func (srv *Server) Session(id string) (*Session, bool) {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	s, ok := srv.sessions[id]
	return s, ok
}

// Forget removes a session from tracking (the caller has already closed
// its connection).
func (srv *Server) Forget(id string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	delete(srv.sessions, id)
}

// Sessions returns a snapshot of every tracked session's status line.
func (srv *Server) Sessions() []string {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	out := make([]string, 0, len(srv.sessions))
	for _, s := range srv.sessions {
		out = append(out, s.Status())
	}
	return out
}

// Drive runs ex until it suspends or stops, routing its Drive events to
// sess, then resumes on the next "resume"/"advance" ControlMessage read
// from sess. It returns when ex reaches exec.Stopped or the connection
// closes.
func Drive(sess *Session, ex *exec.Executor) error {
	ex.Start()
	for {
		if err := ex.Run(); err != nil {
			return err
		}
		switch ex.State() {
		case exec.Stopped:
			return ex.Err()
		case exec.Ready:
			ex.Start()
			continue
		case exec.Suspended:
			msg, err := sess.ReadControl()
			if err != nil {
				return err
			}
			switch msg.Type {
			case "resume", "advance":
				ex.Resume()
			default:
				return fmt.Errorf("simserver: unknown control message type %q", msg.Type)
			}
		}
	}
}
