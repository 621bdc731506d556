package review

import "github.com/fjod/go_cart/order-lifecycle/internal/domain"

type ItemView struct {
	Item     domain.OrderItem `json:"item"`
	Review   *domain.Review   `json:"review,omitempty"`
	Pending  bool             `json:"pending"`
	Editing  bool             `json:"editing"`
	InFlight bool             `json:"in_flight"`
}

type View struct {
	OrderID     string              `json:"order_id"`
	OrderStatus domain.OrderStatus  `json:"order_status"`
	CanReview   bool                `json:"can_review"`
	Items       []ItemView          `json:"items"`
	Draft       *domain.ReviewDraft `json:"draft,omitempty"`
}

// Snapshot returns what the order-detail view should render right now.
func (r *Reconciler) Snapshot() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := View{
		OrderID:     r.orderID,
		OrderStatus: r.status,
		CanReview:   r.status == domain.OrderStatusDelivered,
		Items:       make([]ItemView, 0, len(r.items)),
	}
	for _, item := range r.items {
		iv := ItemView{Item: item}
		if e, ok := r.reviews[item.ID]; ok {
			rv := e.review
			iv.Review = &rv
			iv.Pending = e.optimistic
		}
		iv.Editing = r.draft != nil && r.draft.OrderItemID == item.ID
		_, iv.InFlight = r.inFlight[item.ID]
		v.Items = append(v.Items, iv)
	}
	if r.draft != nil {
		d := *r.draft
		v.Draft = &d
	}
	return v
}
