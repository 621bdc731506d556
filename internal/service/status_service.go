package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_cart/order-lifecycle/internal/domain"
	"github.com/rs/zerolog"
)

type OrderStatusUpdater interface {
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
}

// StatusChangeRecorder persists accepted status changes for asynchronous publishing.
type StatusChangeRecorder interface {
	RecordStatusChange(ctx context.Context, change domain.StatusChange) error
}

type StatusObserver interface {
	StatusTransition(from, to, outcome string)
}

type TransitionOption struct {
	Status   domain.OrderStatus `json:"status"`
	Disabled bool               `json:"disabled"`
}

// Transitions is what an admin status selector renders: every reachable status plus the
// current one, which is shown selected and disabled.
type Transitions struct {
	OrderID string             `json:"order_id"`
	Current domain.OrderStatus `json:"current"`
	Options []TransitionOption `json:"options"`
}

type StatusService struct {
	reader   *OrderReader
	updater  OrderStatusUpdater
	recorder StatusChangeRecorder
	observer StatusObserver
	logger   zerolog.Logger
	now      func() time.Time
}

// NewStatusService wires the admin status flow. recorder and observer may be nil.
func NewStatusService(reader *OrderReader, updater OrderStatusUpdater, recorder StatusChangeRecorder, observer StatusObserver, logger zerolog.Logger) *StatusService {
	return &StatusService{
		reader:   reader,
		updater:  updater,
		recorder: recorder,
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *StatusService) AvailableTransitions(ctx context.Context, orderID string) (*Transitions, error) {
	order, err := s.reader.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return transitionsFor(order), nil
}

func transitionsFor(order *domain.Order) *Transitions {
	next := domain.AvailableNextStatuses(order)
	reachable := make(map[domain.OrderStatus]bool, len(next))
	for _, st := range next {
		reachable[st] = true
	}

	t := &Transitions{OrderID: order.ID, Current: order.Status}
	for _, st := range domain.AllOrderStatuses {
		if st != order.Status && !reachable[st] {
			continue
		}
		t.Options = append(t.Options, TransitionOption{Status: st, Disabled: st == order.Status})
	}
	return t
}

// ChangeStatus validates proposed against the latest backend state, applies it and
// returns the order as the backend reports it afterwards.
func (s *StatusService) ChangeStatus(ctx context.Context, orderID string, proposed domain.OrderStatus, actor string) (*domain.Order, error) {
	order, err := s.reader.Fresh().GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	from := order.Status

	if err := domain.ValidateTransition(order, proposed); err != nil {
		s.observe(from, proposed, "rejected")
		return nil, err
	}

	if err := s.updater.UpdateOrderStatus(ctx, orderID, proposed); err != nil {
		s.observe(from, proposed, "error")
		return nil, fmt.Errorf("%w: %w", ErrStatusUpdateFailed, err)
	}
	s.reader.Invalidate(orderID)
	s.observe(from, proposed, "ok")

	s.logger.Info().
		Str("order_id", orderID).
		Str("from", from.String()).
		Str("to", proposed.String()).
		Str("actor", actor).
		Msg("order status changed")

	s.record(ctx, domain.StatusChange{
		OrderID:   orderID,
		From:      from,
		To:        proposed,
		Actor:     actor,
		ChangedAt: s.now().UTC(),
	})

	updated, err := s.reader.Reload(ctx, orderID)
	if err != nil {
		s.logger.Warn().Err(err).Str("order_id", orderID).Msg("refetch after status change failed")
		fallback := *order // shared with other singleflight callers
		fallback.Status = proposed
		return &fallback, nil
	}
	return updated, nil
}

// record is best effort: the backend update already happened.
func (s *StatusService) record(ctx context.Context, change domain.StatusChange) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordStatusChange(ctx, change); err != nil {
		s.logger.Error().Err(err).Str("order_id", change.OrderID).Msg("failed to record status change in outbox")
	}
}

func (s *StatusService) observe(from, to domain.OrderStatus, outcome string) {
	if s.observer != nil {
		s.observer.StatusTransition(from.String(), to.String(), outcome)
	}
}
