package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownStatus                = errors.New("unknown order status")
	ErrNoOpTransition               = errors.New("choose a different status than current")
	ErrTerminalStatus               = errors.New("order is in a terminal status")
	ErrUnpaidGatewayOrderMustCancel = errors.New("unpaid online gateway order can only be cancelled")
	ErrRegressiveTransition         = errors.New("cannot move backward in the fulfillment pipeline")
	ErrTransitionNotAllowed         = errors.New("transition is not allowed from current status")
)

// TransitionError describes a rejected status change.
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
	Err  error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s: %v", e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// transitions holds the allowed destinations per status. Each set contains its own key
// so the current status can be shown as selected.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusPending, OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusProcessing, OrderStatusShipping, OrderStatusCancelled},
	OrderStatusShipping:   {OrderStatusShipping, OrderStatusDelivered, OrderStatusReturned},
	OrderStatusDelivered:  {OrderStatusDelivered, OrderStatusReturned},
	OrderStatusCancelled:  {OrderStatusCancelled},
	OrderStatusReturned:   {OrderStatusReturned},
}

// pipelineStep is the position in the forward pipeline; side exits return -1.
func pipelineStep(s OrderStatus) int {
	switch s {
	case OrderStatusPending:
		return 0
	case OrderStatusProcessing:
		return 1
	case OrderStatusShipping:
		return 2
	case OrderStatusDelivered:
		return 3
	default:
		return -1
	}
}

// AvailableNextStatuses returns the statuses an order may be shown as moving to,
// including the current one. The result is in display order.
func AvailableNextStatuses(order *Order) []OrderStatus {
	if order.Status.IsTerminal() {
		return []OrderStatus{order.Status}
	}
	if order.AwaitsGatewayPayment() {
		return []OrderStatus{OrderStatusCancelled}
	}
	allowed, ok := transitions[order.Status]
	if !ok {
		return nil
	}
	return inDisplayOrder(allowed)
}

// ValidateTransition checks a proposed status change before it is sent to the backend.
// The allow-list from AvailableNextStatuses is authoritative; the earlier checks only
// give a more specific reason.
func ValidateTransition(order *Order, proposed OrderStatus) error {
	current := order.Status
	reject := func(err error) error {
		return &TransitionError{From: current, To: proposed, Err: err}
	}

	if !current.IsValid() || !proposed.IsValid() {
		return reject(ErrUnknownStatus)
	}
	if proposed == current {
		return reject(ErrNoOpTransition)
	}
	if current.IsTerminal() {
		return reject(ErrTerminalStatus)
	}
	if order.AwaitsGatewayPayment() && proposed != OrderStatusCancelled {
		return reject(ErrUnpaidGatewayOrderMustCancel)
	}

	from, to := pipelineStep(current), pipelineStep(proposed)
	if from >= 0 && to >= 0 && to < from {
		return reject(ErrRegressiveTransition)
	}

	if !containsStatus(AvailableNextStatuses(order), proposed) {
		return reject(ErrTransitionNotAllowed)
	}
	return nil
}

// CanTransitionTo is a boolean shortcut over ValidateTransition.
func CanTransitionTo(order *Order, proposed OrderStatus) bool {
	return ValidateTransition(order, proposed) == nil
}

func containsStatus(set []OrderStatus, s OrderStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func inDisplayOrder(set []OrderStatus) []OrderStatus {
	out := make([]OrderStatus, 0, len(set))
	for _, s := range AllOrderStatuses {
		if containsStatus(set, s) {
			out = append(out, s)
		}
	}
	return out
}
