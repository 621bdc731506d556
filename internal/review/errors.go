package review

import "errors"

var (
	ErrNoDraft            = errors.New("no review draft is open")
	ErrOrderNotDelivered  = errors.New("reviews can only be written for delivered orders")
	ErrReviewExists       = errors.New("order item already has a review")
	ErrUnknownOrderItem   = errors.New("order item does not belong to this order")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
	ErrSubmissionInFlight = errors.New("a submission for this item is still in progress")
	ErrReviewPending      = errors.New("review is still being saved, try again shortly")
	ErrMutationFailed     = errors.New("review mutation failed")
	ErrClosed             = errors.New("review view is closed")
)
