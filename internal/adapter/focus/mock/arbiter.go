// Package mock provides a scriptable audio focus arbiter for tests and headless runs.
package mock

import (
	"sync"

	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/ports"
)

// Arbiter grants focus on request and lets callers emit transitions.
//
// Thread-safety: This implementation is thread-safe.
type Arbiter struct {
	mu       sync.Mutex
	listener ports.FocusListener
	held     bool
	deny     bool
	requests int
	abandons int
}

// NewArbiter creates an arbiter that grants every request.
func NewArbiter() *Arbiter {
	return &Arbiter{}
}

// SetDeny makes later requests fail to obtain focus (for testing).
func (a *Arbiter) SetDeny(deny bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deny = deny
}

// Request records the listener and grants focus unless denied.
func (a *Arbiter) Request(listener ports.FocusListener) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests++
	if a.deny {
		return false, nil
	}
	a.listener = listener
	a.held = true
	return true, nil
}

// Abandon releases focus.
func (a *Arbiter) Abandon() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.held {
		return nil
	}
	a.abandons++
	a.held = false
	a.listener = nil
	return nil
}

// Emit delivers a focus transition to the current holder. It returns false
// when nobody holds focus.
func (a *Arbiter) Emit(change domain.FocusChange) bool {
	a.mu.Lock()
	listener := a.listener
	a.mu.Unlock()

	if listener == nil {
		return false
	}
	listener(change)
	return true
}

// Held reports whether focus is currently granted.
func (a *Arbiter) Held() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.held
}

// Requests returns how many times Request was called.
func (a *Arbiter) Requests() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests
}

// Abandons returns how many grants were released.
func (a *Arbiter) Abandons() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.abandons
}

// Verify interface implementation
var _ ports.FocusArbiter = (*Arbiter)(nil)
