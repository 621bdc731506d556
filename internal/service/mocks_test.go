package service

import (
	"context"
	"errors"
	"sync"

	"github.com/fjod/go_cart/order-lifecycle/internal/cache"
	"github.com/fjod/go_cart/order-lifecycle/internal/domain"
)

var errOrderMissing = errors.New("order not found")

// fakeBackend serves orders and applies status updates like the remote API.
type fakeBackend struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	getErr    error
	getErrAt  int // fail only the n-th GetOrder call (1-based); 0 fails every call
	updateErr error
	gets      int
	updates   []domain.OrderStatus

	// set by holdNextGet: the next GetOrder reads the order, signals read and then
	// waits for release before returning it
	read    chan struct{}
	release chan struct{}
}

func newFakeBackend(orders ...domain.Order) *fakeBackend {
	b := &fakeBackend{orders: make(map[string]domain.Order)}
	for _, o := range orders {
		b.orders[o.ID] = o
	}
	return b
}

func (b *fakeBackend) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	b.mu.Lock()
	b.gets++
	if b.getErr != nil && (b.getErrAt == 0 || b.getErrAt == b.gets) {
		b.mu.Unlock()
		return nil, b.getErr
	}
	o, ok := b.orders[orderID]
	read, release := b.read, b.release
	b.read, b.release = nil, nil
	b.mu.Unlock()

	if release != nil {
		close(read)
		<-release
	}
	if !ok {
		return nil, errOrderMissing
	}
	return &o, nil
}

// holdNextGet makes the next GetOrder stall after reading the order. It returns a
// channel closed once the order was read and a func that lets the call return.
func (b *fakeBackend) holdNextGet() (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.read = make(chan struct{})
	b.release = make(chan struct{})
	read, release := b.read, b.release
	return read, func() { close(release) }
}

func (b *fakeBackend) UpdateOrderStatus(_ context.Context, orderID string, status domain.OrderStatus) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.updateErr != nil {
		return b.updateErr
	}
	b.updates = append(b.updates, status)
	o := b.orders[orderID]
	o.Status = status
	b.orders[orderID] = o
	return nil
}

func (b *fakeBackend) getCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gets
}

// MockCache implements cache.OrderCache for testing
type MockCache struct {
	mu      sync.Mutex
	orders  map[string]domain.Order
	getErr  error
	deleted []string
}

func newMockCache() *MockCache {
	return &MockCache{orders: make(map[string]domain.Order)}
}

func (m *MockCache) Get(_ context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	o, ok := m.orders[orderID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return &o, nil
}

func (m *MockCache) Set(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = *order
	return nil
}

func (m *MockCache) Delete(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orders, orderID)
	m.deleted = append(m.deleted, orderID)
	return nil
}

func (m *MockCache) has(orderID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.orders[orderID]
	return ok
}

type mockRecorder struct {
	changes []domain.StatusChange
	err     error
}

func (m *mockRecorder) RecordStatusChange(_ context.Context, change domain.StatusChange) error {
	if m.err != nil {
		return m.err
	}
	m.changes = append(m.changes, change)
	return nil
}

type transitionCall struct {
	from, to, outcome string
}

type mockObserver struct {
	calls []transitionCall
}

func (m *mockObserver) StatusTransition(from, to, outcome string) {
	m.calls = append(m.calls, transitionCall{from, to, outcome})
}
