package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type ChangeStatusRequestDTO struct {
	Status string `json:"status" validate:"required"`
}

// OpenDraftRequestDTO opens a create draft for an order item or an edit draft for a review.
type OpenDraftRequestDTO struct {
	OrderItemID string `json:"order_item_id" validate:"required_without=ReviewID,excluded_with=ReviewID"`
	ReviewID    string `json:"review_id" validate:"required_without=OrderItemID"`
}

type UpdateDraftRequestDTO struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Content string `json:"content" validate:"max=5000"`
}

// decodeAndValidate writes the error response itself and reports whether the handler may go on.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respondErrorDetails(w, http.StatusBadRequest, "invalid_request", "request validation failed", err.Error())
		return false
	}
	return true
}
