// Package convo holds the in-flight dialog context for each chat identity.
// Contexts are in-memory only: a restart loses them and the user resends the
// message. Durable dialog state is a non-goal.
package convo

import (
	"log"
	"sync"
	"time"

	"github.com/Duhfx/LembrAI/internal/domain"
)

// DefaultTimeout is how long a context survives without activity before it is
// recreated instead of reused.
const DefaultTimeout = 10 * time.Minute

// Store keeps one context per identity behind an interface so it can be
// swapped for a distributed cache later.
type Store interface {
	// Acquire serializes dialog turns per identity. The returned release
	// must be called when the turn is done. Different identities never
	// block each other.
	Acquire(identity string) (release func())

	GetOrCreate(identity string) *domain.Context
	Update(identity string, mutate func(*domain.Context)) *domain.Context
	Clear(identity string)

	// SweepExpired drops contexts idle past the timeout and returns how
	// many were removed. Called on a timer, independent of traffic.
	SweepExpired() int
}

// identityLock is refcounted: the entry is reclaimed by the last releaser, so
// a turn that already fetched the mutex can never race its removal.
type identityLock struct {
	mu   sync.Mutex
	refs int
}

type memoryStore struct {
	mu       sync.Mutex
	contexts map[string]*domain.Context
	locks    map[string]*identityLock
	timeout  time.Duration
	now      func() time.Time
}

func NewMemoryStore(timeout time.Duration) Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &memoryStore{
		contexts: make(map[string]*domain.Context),
		locks:    make(map[string]*identityLock),
		timeout:  timeout,
		now:      time.Now,
	}
}

func (s *memoryStore) Acquire(identity string) func() {
	s.mu.Lock()
	l, ok := s.locks[identity]
	if !ok {
		l = &identityLock{}
		s.locks[identity] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, identity)
		}
		s.mu.Unlock()
	}
}

func (s *memoryStore) GetOrCreate(identity string) *domain.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if ctx, ok := s.contexts[identity]; ok {
		if now.Sub(ctx.UpdatedAt) < s.timeout {
			return ctx
		}
		// Expired contexts are recreated, not revived.
		delete(s.contexts, identity)
	}

	ctx := &domain.Context{
		Identity:  identity,
		State:     domain.StateInitial,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.contexts[identity] = ctx
	return ctx
}

func (s *memoryStore) Update(identity string, mutate func(*domain.Context)) *domain.Context {
	ctx := s.GetOrCreate(identity)

	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(ctx)
	ctx.UpdatedAt = s.now()
	return ctx
}

func (s *memoryStore) Clear(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, identity)
}

func (s *memoryStore) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Locks are not touched here: a turn may still hold one. Entries clean
	// themselves up on release.
	now := s.now()
	swept := 0
	for identity, ctx := range s.contexts {
		if now.Sub(ctx.UpdatedAt) >= s.timeout {
			delete(s.contexts, identity)
			swept++
		}
	}
	if swept > 0 {
		log.Printf("Swept %d expired conversation contexts", swept)
	}
	return swept
}
