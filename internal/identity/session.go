// Package identity holds the signed-in owner of a client process. It is the
// only source of "who am I", and its transitions are what resets the
// synchronized state.
package identity

import (
	"slices"
	"sync"

	"github.com/dmitrijs2005/drivesync/internal/auth"
)

// Listener is told the new owner after every transition; "" means signed
// out.
type Listener func(owner string)

// Session keeps the access token. The record store client reads it through
// Token on every call.
type Session struct {
	mu        sync.RWMutex
	token     string
	owner     string
	listeners map[int]Listener
	nextID    int

	// notifyMu keeps transitions delivered in order.
	notifyMu sync.Mutex
}

func NewSession() *Session {
	return &Session{listeners: make(map[int]Listener)}
}

// SignIn adopts token. The owner is read from its claims without
// verification; the server verifies every call.
func (s *Session) SignIn(token string) error {
	owner, err := auth.PeekOwnerID(token)
	if err != nil {
		return err
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	changed := owner != s.owner
	s.token, s.owner = token, owner
	s.mu.Unlock()

	if changed {
		s.emit(owner)
	}
	return nil
}

func (s *Session) SignOut() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	wasSignedIn := s.owner != ""
	s.token, s.owner = "", ""
	s.mu.Unlock()

	if wasSignedIn {
		s.emit("")
	}
}

// Current returns the owner, if any.
func (s *Session) Current() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner, s.owner != ""
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Watch registers fn for future transitions and returns its cancel func.
func (s *Session) Watch(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// emit calls listeners in registration order. Caller holds notifyMu.
func (s *Session) emit(owner string) {
	s.mu.RLock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	fns := make(map[int]Listener, len(s.listeners))
	for id, fn := range s.listeners {
		fns[id] = fn
	}
	s.mu.RUnlock()

	slices.Sort(ids)
	for _, id := range ids {
		fns[id](owner)
	}
}
