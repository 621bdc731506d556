package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/order-lifecycle/internal/domain"
	"github.com/fjod/go_cart/order-lifecycle/internal/service"
	"github.com/go-chi/chi/v5"
)

type StatusService interface {
	AvailableTransitions(ctx context.Context, orderID string) (*service.Transitions, error)
	ChangeStatus(ctx context.Context, orderID string, proposed domain.OrderStatus, actor string) (*domain.Order, error)
}

type AdminOrdersHandler struct {
	statuses StatusService
	timeout  time.Duration
}

func NewAdminOrdersHandler(statuses StatusService, timeout time.Duration) *AdminOrdersHandler {
	return &AdminOrdersHandler{
		statuses: statuses,
		timeout:  timeout,
	}
}

// GET /api/v1/admin/orders/{order_id}/transitions
func (h *AdminOrdersHandler) GetTransitions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if getUserIDFromContext(r.Context()) == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	transitions, err := h.statuses.AvailableTransitions(ctx, orderID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, transitions)
}

// PATCH /api/v1/admin/orders/{order_id}/status
func (h *AdminOrdersHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor := getUserIDFromContext(r.Context())
	if actor == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	var req ChangeStatusRequestDTO
	if !decodeAndValidate(w, r, &req) {
		return
	}

	order, err := h.statuses.ChangeStatus(ctx, orderID, domain.OrderStatus(req.Status), actor)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}
