// services/locks.go
package services

import (
	"sync"
	"time"
)

// timedMutex is a mutex with bounded acquisition. Callers that cannot get
// the lock inside the timeout receive ErrBusy instead of blocking.
type timedMutex struct {
	ch chan struct{}
}

func newTimedMutex() *timedMutex {
	return &timedMutex{ch: make(chan struct{}, 1)}
}

func (m *timedMutex) Acquire(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case m.ch <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrBusy
	}
}

func (m *timedMutex) Release() {
	<-m.ch
}

// sessionLocks holds the three lock levels for one session:
//   - admission guards the admitted/waitlist/eliminated lists
//   - completion guards the active→completed transition and winner commit
//   - one lock per card guards claim mutation
//
// Admission and completion are separate so join/leave traffic never blocks
// claims, and card locks are independent of each other so unrelated
// players' claims never serialize.
type sessionLocks struct {
	admission  *timedMutex
	completion *timedMutex

	mu    sync.Mutex
	cards map[string]*timedMutex
}

func (l *sessionLocks) card(cardID string) *timedMutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	if m, ok := l.cards[cardID]; ok {
		return m
	}
	m := newTimedMutex()
	l.cards[cardID] = m
	return m
}

// LockRegistry is the engine-scoped registry of in-memory session locks.
// It is rebuilt empty on restart; durable invariants (single winner) are
// enforced by guarded updates against persisted state, not by these locks.
type LockRegistry struct {
	mu       sync.Mutex
	sessions map[string]*sessionLocks
	timeout  time.Duration
}

func NewLockRegistry(timeout time.Duration) *LockRegistry {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &LockRegistry{
		sessions: make(map[string]*sessionLocks),
		timeout:  timeout,
	}
}

func (r *LockRegistry) Timeout() time.Duration { return r.timeout }

func (r *LockRegistry) session(sessionID string) *sessionLocks {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.sessions[sessionID]; ok {
		return l
	}
	l := &sessionLocks{
		admission:  newTimedMutex(),
		completion: newTimedMutex(),
		cards:      make(map[string]*timedMutex),
	}
	r.sessions[sessionID] = l
	return l
}

func (r *LockRegistry) acquireAdmission(sessionID string) (*timedMutex, error) {
	m := r.session(sessionID).admission
	if err := m.Acquire(r.timeout); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *LockRegistry) acquireCompletion(sessionID string) (*timedMutex, error) {
	m := r.session(sessionID).completion
	if err := m.Acquire(r.timeout); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *LockRegistry) acquireCard(sessionID, cardID string) (*timedMutex, error) {
	m := r.session(sessionID).card(cardID)
	if err := m.Acquire(r.timeout); err != nil {
		return nil, err
	}
	return m, nil
}
