package run

import (
	"fmt"
	"sync"
	"time"
)

// ReadyLatch tracks the readiness of an open set of registered client
// sessions. A task may start once every registered session acknowledged
// readiness, or once the optional deadline passed. Registration and readiness
// flips arrive from WebSocket handler goroutines while the owning manager's
// tick loop polls AllReadyOrTimedOut, so the latch carries its own lock.
type ReadyLatch struct {
	mu       sync.RWMutex
	ready    map[string]bool
	deadline time.Time // zero means no timeout fallback
}

func NewReadyLatch() *ReadyLatch {
	return &ReadyLatch{ready: make(map[string]bool)}
}

func (l *ReadyLatch) Register(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.ready[id]; !ok {
		l.ready[id] = false
	}
}

func (l *ReadyLatch) Unregister(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.ready, id)
}

func (l *ReadyLatch) SetReady(id string) error {
	return l.set(id, true)
}

func (l *ReadyLatch) SetUnready(id string) error {
	return l.set(id, false)
}

func (l *ReadyLatch) set(id string, ready bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.ready[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	l.ready[id] = ready
	return nil
}

// Reset clears every flag to false. A positive timeout records an absolute
// deadline after which AllReadyOrTimedOut reports true regardless of flags.
func (l *ReadyLatch) Reset(timeout time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id := range l.ready {
		l.ready[id] = false
	}
	if timeout > 0 {
		l.deadline = time.Now().Add(timeout)
	} else {
		l.deadline = time.Time{}
	}
}

// Clear drops every registration, e.g. on run termination.
func (l *ReadyLatch) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ready = make(map[string]bool)
	l.deadline = time.Time{}
}

// AllReady reports whether every registered session acknowledged readiness.
// With no registrations it is vacuously true.
func (l *ReadyLatch) AllReady() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, ok := range l.ready {
		if !ok {
			return false
		}
	}
	return true
}

func (l *ReadyLatch) AllReadyOrTimedOut() bool {
	l.mu.RLock()
	timedOut := !l.deadline.IsZero() && !time.Now().Before(l.deadline)
	l.mu.RUnlock()
	return timedOut || l.AllReady()
}

// State returns a snapshot of the registered flags.
func (l *ReadyLatch) State() map[string]bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	state := make(map[string]bool, len(l.ready))
	for id, ready := range l.ready {
		state[id] = ready
	}
	return state
}
