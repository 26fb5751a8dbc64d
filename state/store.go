package state

import (
	"sync"
	"sync/atomic"

	"github.com/rlvaden/authstate/identity"
)

// Phase enumerates the engine's lifecycle states. Modeling the cache-preview
// condition as an explicit phase (rather than a flag combination) keeps
// transitions out of it enumerable.
type Phase uint8

const (
	// PhaseUninitialized is the zero value before the store is constructed.
	PhaseUninitialized Phase = iota
	// PhaseLoading covers engine construction until the first authoritative
	// resolution. After a bootstrap timeout the phase remains PhaseLoading
	// with AuthState.Loading already false: the outcome is still pending,
	// and the in-flight session fetch settles the phase when it completes.
	PhaseLoading
	// PhaseAuthenticated means the state is backed by a valid remote session.
	PhaseAuthenticated
	// PhaseUnauthenticated means no session exists.
	PhaseUnauthenticated
	// PhasePreviewFromCache means the identity was reconstructed from the
	// persistent cache and has not been confirmed by the provider.
	PhasePreviewFromCache
)

// String returns the audit-facing name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhasePreviewFromCache:
		return "preview_from_cache"
	default:
		return "uninitialized"
	}
}

// AuthState is the observable identity and permission state.
//
// Invariants maintained by the Engine: Authenticated implies Identity != nil;
// Authenticated is never true for a state sourced purely from cache; Loading
// transitions from true to false exactly once per bootstrap or explicit
// operation cycle.
type AuthState struct {
	Identity      *identity.Identity
	Authenticated bool
	Loading       bool
	Permissions   []string
	Phase         Phase
}

// Clone returns a deep copy safe to hand to readers.
func (s AuthState) Clone() AuthState {
	c := s
	c.Identity = s.Identity.Clone()
	if s.Permissions != nil {
		c.Permissions = make([]string, len(s.Permissions))
		copy(c.Permissions, s.Permissions)
	}
	return c
}

// Store holds the current [AuthState] and notifies subscribers on change.
//
// Writers are serialized; readers are lock-free against the latest snapshot.
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[AuthState]

	subMu   sync.Mutex
	subs    map[uint64]*Subscription
	nextSub uint64
	dropped atomic.Uint64
}

// NewStore creates a Store seeded with the initial loading state.
func NewStore() *Store {
	s := &Store{
		subs: make(map[uint64]*Subscription),
	}
	initial := AuthState{
		Loading:     true,
		Permissions: []string{},
		Phase:       PhaseLoading,
	}
	s.current.Store(&initial)
	return s
}

// Snapshot returns an independent copy of the current state.
func (s *Store) Snapshot() AuthState {
	return s.current.Load().Clone()
}

// Replace installs next as the current state wholesale and notifies
// subscribers. The previous state is returned.
func (s *Store) Replace(next AuthState) AuthState {
	s.mu.Lock()
	prev := *s.current.Load()
	installed := next.Clone()
	s.current.Store(&installed)
	s.mu.Unlock()

	s.notify(installed)
	return prev
}

// Update applies fn to a copy of the current state under the writer lock and
// installs the result. fn must not block; it receives and returns a value, so
// partial mutation of the shared snapshot is impossible. The installed state
// is returned.
func (s *Store) Update(fn func(AuthState) AuthState) AuthState {
	s.mu.Lock()
	next := fn(s.current.Load().Clone()).Clone()
	s.current.Store(&next)
	s.mu.Unlock()

	s.notify(next)
	return next
}

// Subscribe registers a subscriber and returns its subscription object. Each
// state change is delivered as a full snapshot on the subscription channel;
// a subscriber that falls behind misses intermediate states (the channel send
// never blocks a writer) but can always call [Store.Snapshot].
func (s *Store) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 1
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextSub++
	id := s.nextSub
	sub := &Subscription{
		id:    id,
		ch:    make(chan AuthState, buffer),
		store: s,
	}
	s.subs[id] = sub
	return sub
}

// Dropped reports how many notifications were discarded because a subscriber
// channel was full.
func (s *Store) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Store) notify(snapshot AuthState) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, sub := range s.subs {
		select {
		case sub.ch <- snapshot.Clone():
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *Store) unsubscribe(id uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return
	}
	delete(s.subs, id)
	close(sub.ch)
}

// Subscription is an explicit per-subscriber handle owned by the store
// instance. It exists so tests and callers can tear down cleanly instead of
// sharing a module-level listener registry.
type Subscription struct {
	id    uint64
	ch    chan AuthState
	store *Store
	once  sync.Once
}

// States returns the channel of state snapshots. The channel is closed by
// [Subscription.Cancel].
func (sub *Subscription) States() <-chan AuthState {
	return sub.ch
}

// Cancel removes the subscriber and closes its channel. Safe to call more
// than once.
func (sub *Subscription) Cancel() {
	sub.once.Do(func() {
		sub.store.unsubscribe(sub.id)
	})
}
