package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/order-lifecycle/internal/domain"
	"github.com/fjod/go_cart/order-lifecycle/internal/review"
	"github.com/fjod/go_cart/order-lifecycle/internal/service"
	"github.com/fjod/go_cart/order-lifecycle/internal/session"
	"github.com/rs/zerolog"
)

// --- Mocks ---

type StatusServiceMock struct {
	transitions *service.Transitions
	order       *domain.Order
	err         error

	gotOrderID string
	gotStatus  domain.OrderStatus
	gotActor   string
}

func (m *StatusServiceMock) AvailableTransitions(_ context.Context, orderID string) (*service.Transitions, error) {
	m.gotOrderID = orderID
	if m.err != nil {
		return nil, m.err
	}
	return m.transitions, nil
}

func (m *StatusServiceMock) ChangeStatus(_ context.Context, orderID string, proposed domain.OrderStatus, actor string) (*domain.Order, error) {
	m.gotOrderID = orderID
	m.gotStatus = proposed
	m.gotActor = actor
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

// OrderBackendMock serves one order and records review mutations.
type OrderBackendMock struct {
	mu        sync.Mutex
	order     domain.Order
	getErr    error
	createErr error
	updateErr error
	deleteErr error

	created []domain.CreateReviewRequest
	updated []domain.UpdateReviewRequest
	deleted []string
}

func (m *OrderBackendMock) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	o := m.order
	o.ID = orderID
	o.Items = append([]domain.OrderItem(nil), m.order.Items...)
	return &o, nil
}

func (m *OrderBackendMock) CreateReview(_ context.Context, req domain.CreateReviewRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, req)
	return nil
}

func (m *OrderBackendMock) UpdateReview(_ context.Context, req domain.UpdateReviewRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = append(m.updated, req)
	return nil
}

func (m *OrderBackendMock) DeleteReview(_ context.Context, reviewID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, reviewID)
	return nil
}

// --- helpers ---

func deliveredOrder() domain.Order {
	return domain.Order{
		ID:            "order-1",
		UserID:        "1",
		Status:        domain.OrderStatusDelivered,
		PaymentMethod: domain.PaymentMethodCash,
		PaymentStatus: domain.PaymentStatusPaid,
		Items: []domain.OrderItem{
			{ID: "item-1", ProductID: "prod-1", Quantity: 1},
			{
				ID: "item-2", ProductID: "prod-2", Quantity: 2,
				Review: &domain.Review{ID: "rev-9", OrderItemID: "item-2", ProductID: "prod-2", Rating: 3, Content: "ok"},
			},
		},
	}
}

type testServer struct {
	backend  *OrderBackendMock
	statuses *StatusServiceMock
	store    *session.Store
	handler  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	backend := &OrderBackendMock{order: deliveredOrder()}
	statuses := &StatusServiceMock{}
	store := session.NewStore(backend, backend, review.Options{
		RefetchDelay: time.Hour, // refetches never fire during a test
		Logger:       zerolog.Nop(),
	}, time.Hour, time.Hour)
	t.Cleanup(store.Shutdown)

	handler := NewRouter(RouterConfig{
		Logger:         zerolog.Nop(),
		Admin:          NewAdminOrdersHandler(statuses, 5*time.Second),
		Reviews:        NewReviewSessionHandler(store, 5*time.Second),
		RequestTimeout: 5 * time.Second,
	})
	return &testServer{backend: backend, statuses: statuses, store: store, handler: handler}
}

func newJSONRequest(method, path, body string) *http.Request {
	if body == "" {
		return httptest.NewRequest(method, path, nil)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	return serve(s.handler, newJSONRequest(method, path, body))
}
