package run

import (
	"fmt"

	"github.com/openvbs/arena/internal/config"
	"github.com/puzpuzpuz/xsync/v3"
	"gorm.io/gorm"
)

// SessionInfo identifies one connected client session.
type SessionInfo struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	TeamID string `json:"team_id"`
}

// Sink is the narrow client-transport contract the engine broadcasts
// through. Sends are best-effort: a failed send is dropped, the ready latch
// is the authoritative synchronization mechanism.
type Sink interface {
	SessionsForRun(runID string) []SessionInfo
	Send(sessionID string, data []byte) error
}

// Runtime is the explicit context handed to every run manager at
// construction: persistence, client transport, audit sink and engine tuning.
// It replaces process-wide singletons so multiple runs (and tests) stay
// isolated.
type Runtime struct {
	DB     *gorm.DB
	Sink   Sink
	Engine config.Engine
	Audit  *Auditor

	managers *xsync.MapOf[string, Manager]
}

func NewRuntime(db *gorm.DB, sink Sink, engine config.Engine) *Runtime {
	return &Runtime{
		DB:       db,
		Sink:     sink,
		Engine:   engine,
		Audit:    NewAuditor(db),
		managers: xsync.NewMapOf[string, Manager](),
	}
}

func (r *Runtime) Register(m Manager) {
	r.managers.Store(m.ID(), m)
}

func (r *Runtime) Get(id string) (Manager, bool) {
	return r.managers.Load(id)
}

func (r *Runtime) Remove(id string) {
	r.managers.Delete(id)
}

func (r *Runtime) All() []Manager {
	var out []Manager
	r.managers.Range(func(_ string, m Manager) bool {
		out = append(out, m)
		return true
	})
	return out
}

// RouteClientMessage delivers an inbound WebSocket message to the manager
// owning the run it names.
func (r *Runtime) RouteClientMessage(session SessionInfo, msg ClientMessage) error {
	m, ok := r.Get(msg.RunID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRun, msg.RunID)
	}
	m.HandleClientMessage(session, msg)
	return nil
}

// SessionDisconnected tells every manager that a session went away so it can
// drop latch registrations.
func (r *Runtime) SessionDisconnected(sessionID string) {
	r.managers.Range(func(_ string, m Manager) bool {
		m.SessionDisconnected(sessionID)
		return true
	})
}

// Shutdown stops every manager's tick loop.
func (r *Runtime) Shutdown() {
	r.managers.Range(func(_ string, m Manager) bool {
		m.Stop()
		return true
	})
}
