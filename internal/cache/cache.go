package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/order-lifecycle/internal/domain"
)

type OrderCache interface {
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	Set(ctx context.Context, order *domain.Order) error
	Delete(ctx context.Context, orderID string) error
}

var ErrCacheMiss = errors.New("cache miss")
