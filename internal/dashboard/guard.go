package dashboard

import (
	"sync"
	"sync/atomic"
)

// Guard is a busy flag: at most one holder at a time, no waiting.
// A control bound to a busy guard renders disabled.
type Guard struct {
	busy atomic.Bool
}

// TryAcquire marks the guard busy and reports whether the caller got it.
func (g *Guard) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release clears the flag. Call it exactly once per successful TryAcquire.
func (g *Guard) Release() {
	g.busy.Store(false)
}

func (g *Guard) Busy() bool {
	return g.busy.Load()
}

// GuardSet hands out one Guard per key (user ID). Pages live for a single
// request, so the busy flag lives here to span the user's concurrent requests.
//
// Entries are reference counted: a guard is dropped when its last user calls
// done. A busy guard always has a user, so dropping never loses a held flag.
type GuardSet struct {
	mu     sync.Mutex
	guards map[string]*guardEntry
}

type guardEntry struct {
	guard *Guard
	refs  int
}

func NewGuardSet() *GuardSet {
	return &GuardSet{guards: make(map[string]*guardEntry)}
}

// For returns the guard for key, creating it on first use. Call done once
// the guard is no longer needed; extra calls are ignored.
func (s *GuardSet) For(key string) (g *Guard, done func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.guards[key]
	if !ok {
		e = &guardEntry{guard: &Guard{}}
		s.guards[key] = e
	}
	e.refs++

	var once sync.Once
	return e.guard, func() {
		once.Do(func() { s.put(key, e) })
	}
}

func (s *GuardSet) put(key string, e *guardEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.refs--
	if e.refs == 0 && s.guards[key] == e {
		delete(s.guards, key)
	}
}

// Len returns the number of keys with a live guard.
func (s *GuardSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.guards)
}
