package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/go_cart/order-lifecycle/internal/review"
)

const (
	// DefaultIdleTTL is how long an unused review view is kept open
	DefaultIdleTTL = 30 * time.Minute

	// DefaultCleanupInterval is how often idle views are swept
	DefaultCleanupInterval = time.Minute
)

var (
	ErrSessionNotFound = errors.New("review session not found")
	ErrNotOrderOwner   = errors.New("order belongs to another user")
)

// Key identifies one order-detail view of one user.
type Key struct {
	UserID  string
	OrderID string
}

type session struct {
	reconciler *review.Reconciler
	lastSeen   time.Time
}

// Store owns the reconcilers of all open order-detail views. Each view gets its own
// instance; nothing is shared between views.
type Store struct {
	mu       sync.Mutex
	sessions map[Key]*session

	fetcher review.OrderFetcher
	mutator review.Mutator
	opts    review.Options

	idleTTL         time.Duration
	cleanupInterval time.Duration
	now             func() time.Time

	stopCleanup chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewStore(fetcher review.OrderFetcher, mutator review.Mutator, opts review.Options, idleTTL, cleanupInterval time.Duration) *Store {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	s := &Store{
		sessions:        make(map[Key]*session),
		fetcher:         fetcher,
		mutator:         mutator,
		opts:            opts,
		idleTTL:         idleTTL,
		cleanupInterval: cleanupInterval,
		now:             time.Now,
		stopCleanup:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

func (s *Store) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.expireIdle()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *Store) expireIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.idleTTL)
	for key, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			sess.reconciler.Close()
			delete(s.sessions, key)
		}
	}
}

// Open starts a fresh view for the order, replacing any previous one for the same key.
// Only the user who placed the order may open it.
func (s *Store) Open(ctx context.Context, key Key) (*review.Reconciler, error) {
	rec := review.NewReconciler(key.OrderID, s.fetcher, s.mutator, s.opts)
	if err := rec.Load(ctx); err != nil {
		rec.Close()
		return nil, err
	}
	if rec.UserID() != key.UserID {
		rec.Close()
		return nil, ErrNotOrderOwner
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.sessions[key]; ok {
		prev.reconciler.Close()
	}
	s.sessions[key] = &session{reconciler: rec, lastSeen: s.now()}
	return rec, nil
}

// Get returns the open view and marks it as recently used.
func (s *Store) Get(key Key) (*review.Reconciler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.lastSeen = s.now()
	return sess.reconciler, nil
}

// Close discards the view and its pending refetches.
func (s *Store) Close(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return ErrSessionNotFound
	}
	sess.reconciler.Close()
	delete(s.sessions, key)
	return nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown stops the cleanup loop and closes every open view.
func (s *Store) Shutdown() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, sess := range s.sessions {
		sess.reconciler.Close()
		delete(s.sessions, key)
	}
}
