package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/order-lifecycle/internal/domain"
	"github.com/fjod/go_cart/order-lifecycle/internal/review"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockFetcher struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (m *mockFetcher) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Order{
		ID:     orderID,
		UserID: "1",
		Status: domain.OrderStatusDelivered,
		Items:  []domain.OrderItem{{ID: "item-1", ProductID: "prod-1", Quantity: 1}},
	}, nil
}

type nopMutator struct{}

func (nopMutator) CreateReview(context.Context, domain.CreateReviewRequest) error { return nil }
func (nopMutator) UpdateReview(context.Context, domain.UpdateReviewRequest) error { return nil }
func (nopMutator) DeleteReview(context.Context, string) error                     { return nil }

func newTestStore(t *testing.T, fetcher *mockFetcher, ttl, interval time.Duration) *Store {
	t.Helper()
	s := NewStore(fetcher, nopMutator{}, review.Options{Logger: zerolog.Nop(), RefetchDelay: time.Hour}, ttl, interval)
	t.Cleanup(s.Shutdown)
	return s
}

func TestStore_OpenGetClose(t *testing.T) {
	s := newTestStore(t, &mockFetcher{}, time.Hour, time.Hour)
	key := Key{UserID: "1", OrderID: "order-1"}

	rec, err := s.Open(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "order-1", rec.OrderID())

	got, err := s.Get(key)
	require.NoError(t, err)
	assert.Same(t, rec, got)

	require.NoError(t, s.Close(key))
	_, err = s.Get(key)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, s.Close(key), ErrSessionNotFound)
}

func TestStore_ViewsAreNotShared(t *testing.T) {
	s := newTestStore(t, &mockFetcher{}, time.Hour, time.Hour)

	a, err := s.Open(context.Background(), Key{UserID: "1", OrderID: "order-1"})
	require.NoError(t, err)
	b, err := s.Open(context.Background(), Key{UserID: "1", OrderID: "order-2"})
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, 2, s.Len())
}

func TestStore_OpenRejectsOrderOfAnotherUser(t *testing.T) {
	s := newTestStore(t, &mockFetcher{}, time.Hour, time.Hour)

	rec, err := s.Open(context.Background(), Key{UserID: "2", OrderID: "order-1"})

	assert.ErrorIs(t, err, ErrNotOrderOwner)
	assert.Nil(t, rec)
	assert.Equal(t, 0, s.Len())
}

func TestStore_ReopenReplacesAndClosesPrevious(t *testing.T) {
	s := newTestStore(t, &mockFetcher{}, time.Hour, time.Hour)
	key := Key{UserID: "1", OrderID: "order-1"}

	first, err := s.Open(context.Background(), key)
	require.NoError(t, err)
	second, err := s.Open(context.Background(), key)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.ErrorIs(t, first.Submit(context.Background()), review.ErrClosed)
	assert.Equal(t, 1, s.Len())
}

func TestStore_OpenLoadError(t *testing.T) {
	backendErr := errors.New("backend unavailable")
	s := newTestStore(t, &mockFetcher{err: backendErr}, time.Hour, time.Hour)

	_, err := s.Open(context.Background(), Key{UserID: "1", OrderID: "order-1"})
	assert.ErrorIs(t, err, backendErr)
	assert.Equal(t, 0, s.Len())
}

func TestStore_ExpiresIdleSessions(t *testing.T) {
	s := newTestStore(t, &mockFetcher{}, 20*time.Millisecond, 5*time.Millisecond)

	_, err := s.Open(context.Background(), Key{UserID: "1", OrderID: "order-1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestStore_ShutdownClosesAll(t *testing.T) {
	s := NewStore(&mockFetcher{}, nopMutator{}, review.Options{Logger: zerolog.Nop()}, time.Hour, time.Hour)
	rec, err := s.Open(context.Background(), Key{UserID: "1", OrderID: "order-1"})
	require.NoError(t, err)

	s.Shutdown()
	s.Shutdown()

	assert.Equal(t, 0, s.Len())
	assert.ErrorIs(t, rec.Submit(context.Background()), review.ErrClosed)
}
