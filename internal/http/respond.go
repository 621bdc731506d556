package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/order-lifecycle/internal/client"
	"github.com/fjod/go_cart/order-lifecycle/internal/domain"
	"github.com/fjod/go_cart/order-lifecycle/internal/review"
	"github.com/fjod/go_cart/order-lifecycle/internal/service"
	"github.com/fjod/go_cart/order-lifecycle/internal/session"
	"github.com/rs/zerolog/log"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func respondErrorDetails(w http.ResponseWriter, status int, code, message, details string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

type errorMapping struct {
	target error
	status int
	code   string
}

// First match wins, so backend availability is checked before the generic wrappers.
var errorMappings = []errorMapping{
	{client.ErrBackendUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
	{client.ErrNotFound, http.StatusNotFound, "not_found"},
	{session.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{session.ErrNotOrderOwner, http.StatusNotFound, "not_found"},
	{review.ErrClosed, http.StatusGone, "session_closed"},

	{domain.ErrUnknownStatus, http.StatusBadRequest, "unknown_status"},
	{domain.ErrNoOpTransition, http.StatusUnprocessableEntity, "noop_transition"},
	{domain.ErrTerminalStatus, http.StatusUnprocessableEntity, "terminal_status"},
	{domain.ErrUnpaidGatewayOrderMustCancel, http.StatusUnprocessableEntity, "unpaid_gateway_order"},
	{domain.ErrRegressiveTransition, http.StatusUnprocessableEntity, "regressive_transition"},
	{domain.ErrTransitionNotAllowed, http.StatusUnprocessableEntity, "transition_not_allowed"},

	{review.ErrInvalidRating, http.StatusBadRequest, "invalid_rating"},
	{review.ErrUnknownOrderItem, http.StatusNotFound, "unknown_order_item"},
	{review.ErrOrderNotDelivered, http.StatusUnprocessableEntity, "order_not_delivered"},
	{review.ErrNoDraft, http.StatusConflict, "no_draft"},
	{review.ErrReviewExists, http.StatusConflict, "review_exists"},
	{review.ErrSubmissionInFlight, http.StatusConflict, "submission_in_flight"},
	{review.ErrReviewPending, http.StatusConflict, "review_pending"},

	{review.ErrMutationFailed, http.StatusBadGateway, "backend_error"},
	{service.ErrStatusUpdateFailed, http.StatusBadGateway, "backend_error"},
}

func handleError(w http.ResponseWriter, err error) {
	// A backend 404 on a review write means the review or its order item is gone,
	// which the generic not_found below would report as a missing order.
	if errors.Is(err, review.ErrMutationFailed) && errors.Is(err, client.ErrNotFound) {
		respondError(w, http.StatusNotFound, "review_target_not_found", err.Error())
		return
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			respondError(w, m.status, m.code, err.Error())
			return
		}
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		respondError(w, http.StatusBadGateway, "backend_error", apiErr.Error())
		return
	}

	log.Error().Err(err).Msg("unmapped error")
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
