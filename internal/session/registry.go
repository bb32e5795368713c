package session

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/openvbs/arena/internal/run"
	"go.uber.org/zap"
)

var errSessionGone = errors.New("session closed")

// Session is one connected WebSocket client bound to a run. Outbound
// messages go through a buffered channel drained by a writer goroutine, so a
// slow client never blocks the engine.
type Session struct {
	ID     string
	UserID string
	TeamID string
	RunID  string

	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (s *Session) Info() run.SessionInfo {
	return run.SessionInfo{ID: s.ID, UserID: s.UserID, TeamID: s.TeamID}
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.send)
	})
}

// Registry tracks all live sessions and implements the engine's broadcast
// sink. It is shared by every run manager and by the WebSocket handlers, so
// it synchronizes itself.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Attach registers a connection and starts its writer goroutine. The caller
// owns the read side.
func (r *Registry) Attach(id, userID, teamID, runID string, conn *websocket.Conn) *Session {
	s := &Session{
		ID:     id,
		UserID: userID,
		TeamID: teamID,
		RunID:  runID,
		conn:   conn,
		send:   make(chan []byte, 128),
	}
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	go s.writeLoop()
	zap.S().Infof("session %s attached to run %s (user %s)", id, runID, userID)
	return s
}

func (r *Registry) Detach(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.close()
		zap.S().Infof("session %s detached", id)
	}
}

// SessionsForRun implements run.Sink.
func (r *Registry) SessionsForRun(runID string) []run.SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []run.SessionInfo
	for _, s := range r.sessions {
		if s.RunID == runID {
			out = append(out, s.Info())
		}
	}
	return out
}

// Send implements run.Sink. A full send buffer drops the message; delivery
// is best-effort by design, the ready latch carries the real handshake.
func (r *Registry) Send(sessionID string, data []byte) error {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return errSessionGone
	}
	select {
	case s.send <- data:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

func (s *Session) writeLoop() {
	defer s.conn.Close()
	for data := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			zap.S().Debugf("session %s write failed: %v", s.ID, err)
			return
		}
	}
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
