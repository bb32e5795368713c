package run

import (
	"sync"
	"time"

	"github.com/openvbs/arena/internal/database/models"
	"go.uber.org/zap"
)

// Phase orders updatables within one tick: PREPARE recomputes state, MAIN
// acts on it, FINALIZE flushes it out (messages, persistence).
type Phase int

const (
	PhasePrepare Phase = iota
	PhaseMain
	PhaseFinalize
)

// Updatable is one unit of per-tick work registered with a run manager.
// Within a phase, updatables run in declaration order.
type Updatable interface {
	Phase() Phase
	ShouldRun(status models.RunStatus) bool
	Update(now time.Time)
}

// StatefulUpdatable adds an explicit dirty flag set by callers (submission
// ingestion, task transitions) and an optional rate limit that applies
// independent of the flag.
type StatefulUpdatable struct {
	mu       sync.Mutex
	dirty    bool
	lastRun  time.Time
	interval time.Duration // zero = no throttle
}

func (u *StatefulUpdatable) MarkDirty() {
	u.mu.Lock()
	u.dirty = true
	u.mu.Unlock()
}

func (u *StatefulUpdatable) Dirty() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.dirty
}

// shouldAct reports whether the updatable is dirty and past its rate limit,
// clearing the flag and stamping the run time when it is. The caller is
// expected to act when true is returned.
func (u *StatefulUpdatable) shouldAct(now time.Time) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.dirty {
		return false
	}
	if u.interval > 0 && now.Sub(u.lastRun) < u.interval {
		return false
	}
	u.dirty = false
	u.lastRun = now
	return true
}

// RunUpdatables executes one tick: every updatable whose ShouldRun accepts
// the current status, phase by phase, declaration order within a phase. A
// panic inside one updatable is logged and must not kill the loop.
func RunUpdatables(updatables []Updatable, status models.RunStatus, now time.Time) {
	for _, phase := range []Phase{PhasePrepare, PhaseMain, PhaseFinalize} {
		for _, u := range updatables {
			if u.Phase() != phase || !u.ShouldRun(status) {
				continue
			}
			runGuarded(u, now)
		}
	}
}

func runGuarded(u Updatable, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorf("updatable %T panicked: %v", u, r)
		}
	}()
	u.Update(now)
}
