package domain

import (
	"strings"
	"time"
)

const (
	MinRating = 1
	MaxRating = 5

	// DefaultDraftRating pre-fills a new review form. It is a UX default, not a business rule.
	DefaultDraftRating = 5

	tempReviewIDPrefix = "tmp-"
)

type Review struct {
	ID          string    `json:"id"`
	OrderItemID string    `json:"order_item_id"`
	ProductID   string    `json:"product_id"`
	Rating      int       `json:"rating"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsTemporary reports whether the review still carries a client-side id.
func (r Review) IsTemporary() bool {
	return strings.HasPrefix(r.ID, tempReviewIDPrefix)
}

// TemporaryReviewID builds a client-side id from a unique suffix.
func TemporaryReviewID(suffix string) string {
	return tempReviewIDPrefix + suffix
}

// ReviewDraft is the in-progress form state; a non-empty ReviewID means edit mode.
type ReviewDraft struct {
	ReviewID    string `json:"review_id,omitempty"`
	OrderItemID string `json:"order_item_id"`
	ProductID   string `json:"product_id"`
	Rating      int    `json:"rating"`
	Content     string `json:"content"`
}

func (d ReviewDraft) IsEdit() bool {
	return d.ReviewID != ""
}

func ValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}

type CreateReviewRequest struct {
	OrderItemID string `json:"order_item_id"`
	ProductID   string `json:"product_id"`
	Rating      int    `json:"rating"`
	Content     string `json:"content"`
}

type UpdateReviewRequest struct {
	ID      string `json:"-"`
	Rating  int    `json:"rating"`
	Content string `json:"content"`
}
