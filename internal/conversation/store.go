package conversation

import (
	"context"
	"sync"
	"time"
)

// Store keeps at most one State per Key and serializes work on each key.
type Store struct {
	mu      sync.Mutex
	entries map[Key]*entry
	now     func() time.Time
}

type entry struct {
	sem   chan struct{} // holds one token while a Session is open
	state *State
	refs  int // sessions holding or waiting for sem
}

// NewStore creates an empty Store.
func NewStore(now func() time.Time) *Store {
	return &Store{entries: make(map[Key]*entry), now: now}
}

// Session is exclusive access to one key. Release must be called exactly once.
type Session struct {
	store   *Store
	key     Key
	e       *entry
	expired *State
	done    bool
}

// Acquire waits for exclusive access to key or for ctx to end.
// A state that expired while idle is discarded and reported by Session.Expired.
func (s *Store) Acquire(ctx context.Context, key Key) (*Session, error) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		s.entries[key] = e
	}
	e.refs++
	s.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		s.mu.Lock()
		s.unref(key, e)
		s.mu.Unlock()
		return nil, ctx.Err()
	}

	sess := &Session{store: s, key: key, e: e}
	s.mu.Lock()
	if e.state != nil && e.state.Expired(s.now()) {
		sess.expired = e.state
		e.state = nil
	}
	s.mu.Unlock()
	return sess, nil
}

// unref drops one reference. Callers hold s.mu.
func (s *Store) unref(key Key, e *entry) {
	e.refs--
	if e.refs == 0 && e.state == nil {
		delete(s.entries, key)
	}
}

// State returns the active conversation, if any.
func (sess *Session) State() (State, bool) {
	sess.store.mu.Lock()
	defer sess.store.mu.Unlock()
	if sess.e.state == nil {
		return State{}, false
	}
	return *sess.e.state, true
}

// Expired returns the state discarded on Acquire because it timed out.
func (sess *Session) Expired() (State, bool) {
	if sess.expired == nil {
		return State{}, false
	}
	return *sess.expired, true
}

// Put replaces the active conversation.
func (sess *Session) Put(st State) {
	sess.store.mu.Lock()
	defer sess.store.mu.Unlock()
	sess.e.state = &st
}

// Clear removes the active conversation.
func (sess *Session) Clear() {
	sess.store.mu.Lock()
	defer sess.store.mu.Unlock()
	sess.e.state = nil
}

// Release gives up access to the key.
func (sess *Session) Release() {
	if sess.done {
		return
	}
	sess.done = true
	<-sess.e.sem
	sess.store.mu.Lock()
	sess.store.unref(sess.key, sess.e)
	sess.store.mu.Unlock()
}

// Peek returns the active state for key without waiting for its lock.
func (s *Store) Peek(key Key) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.state == nil || e.state.Expired(s.now()) {
		return State{}, false
	}
	return *e.state, true
}

// Len returns the number of keys with a live conversation.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.state != nil {
			n++
		}
	}
	return n
}

// Sweep evicts expired conversations on keys nobody is using and returns them.
func (s *Store) Sweep() []State {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var evicted []State
	for key, e := range s.entries {
		if e.refs > 0 || e.state == nil || !e.state.Expired(now) {
			continue
		}
		evicted = append(evicted, *e.state)
		e.state = nil
		delete(s.entries, key)
	}
	return evicted
}

// Run sweeps every interval until ctx ends, passing evicted states to onExpire.
func (s *Store) Run(ctx context.Context, interval time.Duration, onExpire func(State)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, st := range s.Sweep() {
				if onExpire != nil {
					onExpire(st)
				}
			}
		}
	}
}
