package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/order-lifecycle/internal/review"
	"github.com/fjod/go_cart/order-lifecycle/internal/session"
	"github.com/go-chi/chi/v5"
)

type SessionStore interface {
	Open(ctx context.Context, key session.Key) (*review.Reconciler, error)
	Get(key session.Key) (*review.Reconciler, error)
	Close(key session.Key) error
}

type ReviewSessionHandler struct {
	sessions SessionStore
	timeout  time.Duration
}

func NewReviewSessionHandler(sessions SessionStore, timeout time.Duration) *ReviewSessionHandler {
	return &ReviewSessionHandler{
		sessions: sessions,
		timeout:  timeout,
	}
}

func sessionKey(w http.ResponseWriter, r *http.Request) (session.Key, bool) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return session.Key{}, false
	}
	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return session.Key{}, false
	}
	return session.Key{UserID: userID, OrderID: orderID}, true
}

func (h *ReviewSessionHandler) reconciler(w http.ResponseWriter, r *http.Request) (*review.Reconciler, bool) {
	key, ok := sessionKey(w, r)
	if !ok {
		return nil, false
	}
	rec, err := h.sessions.Get(key)
	if err != nil {
		handleError(w, err)
		return nil, false
	}
	return rec, true
}

// POST /api/v1/orders/{order_id}/review-session
func (h *ReviewSessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key, ok := sessionKey(w, r)
	if !ok {
		return
	}

	rec, err := h.sessions.Open(ctx, key)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, rec.Snapshot())
}

// GET /api/v1/orders/{order_id}/review-session
func (h *ReviewSessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.reconciler(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, rec.Snapshot())
}

// DELETE /api/v1/orders/{order_id}/review-session
func (h *ReviewSessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Close(key); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/orders/{order_id}/review-session/draft
func (h *ReviewSessionHandler) OpenDraft(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.reconciler(w, r)
	if !ok {
		return
	}

	var req OpenDraftRequestDTO
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var err error
	if req.ReviewID != "" {
		rv, found := rec.ReviewByID(req.ReviewID)
		if !found {
			respondError(w, http.StatusNotFound, "review_not_found", "review not found in this order")
			return
		}
		err = rec.OpenEdit(rv)
	} else {
		item, found := rec.Item(req.OrderItemID)
		if !found {
			err = review.ErrUnknownOrderItem
		} else {
			err = rec.OpenCreate(item)
		}
	}
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rec.Snapshot())
}

// PATCH /api/v1/orders/{order_id}/review-session/draft
func (h *ReviewSessionHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.reconciler(w, r)
	if !ok {
		return
	}

	var req UpdateDraftRequestDTO
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := rec.UpdateDraft(req.Rating, req.Content); err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rec.Snapshot())
}

// DELETE /api/v1/orders/{order_id}/review-session/draft
func (h *ReviewSessionHandler) CancelDraft(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.reconciler(w, r)
	if !ok {
		return
	}

	if err := rec.CancelDraft(); err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rec.Snapshot())
}

// POST /api/v1/orders/{order_id}/review-session/draft/submit
func (h *ReviewSessionHandler) SubmitDraft(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rec, ok := h.reconciler(w, r)
	if !ok {
		return
	}

	if err := rec.Submit(ctx); err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rec.Snapshot())
}

// DELETE /api/v1/orders/{order_id}/review-session/reviews/{review_id}?confirm=true
func (h *ReviewSessionHandler) RemoveReview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rec, ok := h.reconciler(w, r)
	if !ok {
		return
	}

	reviewID := chi.URLParam(r, "review_id")
	if reviewID == "" {
		respondError(w, http.StatusBadRequest, "missing_review_id", "review_id is required")
		return
	}
	if r.URL.Query().Get("confirm") != "true" {
		respondError(w, http.StatusBadRequest, "confirmation_required", "deleting a review requires confirm=true")
		return
	}

	if err := rec.Remove(ctx, reviewID); err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rec.Snapshot())
}
