package review

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/order-lifecycle/internal/domain"
)

// mockFetcher implements OrderFetcher for testing
type mockFetcher struct {
	mu    sync.Mutex
	order *domain.Order
	err   error
	calls int

	// later replaces order once calls exceeds laterAfter
	later      *domain.Order
	laterAfter int
}

func (m *mockFetcher) GetOrder(_ context.Context, _ string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.later != nil && m.calls > m.laterAfter {
		m.order = m.later
	}
	// hand out a copy so the reconciler never shares item slices with the test
	o := *m.order
	o.Items = append([]domain.OrderItem(nil), m.order.Items...)
	return &o, nil
}

func (m *mockFetcher) setOrder(o *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = o
}

func (m *mockFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockMutator implements Mutator for testing
type mockMutator struct {
	mu        sync.Mutex
	createErr error
	updateErr error
	deleteErr error
	gate      chan struct{} // when set, every call waits for it to be closed

	created []domain.CreateReviewRequest
	updated []domain.UpdateReviewRequest
	deleted []string
}

func (m *mockMutator) wait(ctx context.Context) {
	if m.gate == nil {
		return
	}
	select {
	case <-m.gate:
	case <-ctx.Done():
	}
}

func (m *mockMutator) CreateReview(ctx context.Context, req domain.CreateReviewRequest) error {
	m.wait(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, req)
	return m.createErr
}

func (m *mockMutator) UpdateReview(ctx context.Context, req domain.UpdateReviewRequest) error {
	m.wait(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, req)
	return m.updateErr
}

func (m *mockMutator) DeleteReview(ctx context.Context, reviewID string) error {
	m.wait(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, reviewID)
	return m.deleteErr
}

func (m *mockMutator) deleteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.deleted)
}

// recordingObserver implements Observer for testing
type recordingObserver struct {
	mu        sync.Mutex
	mutations []string
	refetches []string
}

func (o *recordingObserver) ReviewMutation(kind, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mutations = append(o.mutations, kind+":"+outcome)
}

func (o *recordingObserver) ReviewRefetch(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.refetches = append(o.refetches, outcome)
}

func (o *recordingObserver) refetchOutcomes() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.refetches...)
}
