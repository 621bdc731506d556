package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/go_cart/order-lifecycle/internal/cache"
	"github.com/fjod/go_cart/order-lifecycle/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const cacheOpTimeout = time.Second

type OrderFetcher interface {
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

// OrderReader serves order details through the redis cache. Reads that must observe the
// latest backend state go through Fresh.
type OrderReader struct {
	backend OrderFetcher
	cache   cache.OrderCache
	sfg     singleflight.Group // Prevents cache stampede
	logger  zerolog.Logger

	mu      sync.Mutex
	loading map[string]*loadState
}

// loadState tracks backend loads in progress for one order. Invalidate bumps epoch so
// a load that read the order before the mutation does not cache what it read.
type loadState struct {
	epoch uint64
	loads int
}

func NewOrderReader(backend OrderFetcher, cache cache.OrderCache, logger zerolog.Logger) *OrderReader {
	return &OrderReader{
		backend: backend,
		cache:   cache,
		logger:  logger,
		loading: make(map[string]*loadState),
	}
}

func (r *OrderReader) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	v, err, _ := r.sfg.Do(orderID, func() (interface{}, error) {
		order, err := r.cache.Get(ctx, orderID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Warn().Err(err).Str("order_id", orderID).Msg("cache get error")
		}
		return r.load(ctx, orderID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Order), nil
}

// Fresh returns a fetcher that always asks the backend and refreshes the cache.
func (r *OrderReader) Fresh() OrderFetcher {
	return freshReader{r}
}

// Reload reads the order from the backend without joining a read already in flight.
// Use it right after a mutation, when an earlier flight may still return the old state.
func (r *OrderReader) Reload(ctx context.Context, orderID string) (*domain.Order, error) {
	return r.load(ctx, orderID)
}

// Invalidate drops the cached copy after a mutation.
func (r *OrderReader) Invalidate(orderID string) {
	r.mu.Lock()
	if st, ok := r.loading[orderID]; ok {
		st.epoch++
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := r.cache.Delete(ctx, orderID); err != nil {
		r.logger.Warn().Err(err).Str("order_id", orderID).Msg("cache invalidate error")
	}
}

func (r *OrderReader) load(ctx context.Context, orderID string) (*domain.Order, error) {
	epoch := r.beginLoad(orderID)
	defer r.endLoad(orderID)

	order, err := r.backend.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !r.sameEpoch(orderID, epoch) {
		r.logger.Debug().Str("order_id", orderID).Msg("order invalidated during load, not caching")
		return order, nil
	}

	setCtx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := r.cache.Set(setCtx, order); err != nil {
		r.logger.Warn().Err(err).Str("order_id", orderID).Msg("cache set error")
	}
	// Invalidate may have run between the check and the Set.
	if !r.sameEpoch(orderID, epoch) {
		if err := r.cache.Delete(setCtx, orderID); err != nil {
			r.logger.Warn().Err(err).Str("order_id", orderID).Msg("cache invalidate error")
		}
	}
	return order, nil
}

func (r *OrderReader) beginLoad(orderID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.loading[orderID]
	if !ok {
		st = &loadState{}
		r.loading[orderID] = st
	}
	st.loads++
	return st.epoch
}

func (r *OrderReader) endLoad(orderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.loading[orderID]
	st.loads--
	if st.loads == 0 {
		delete(r.loading, orderID)
	}
}

func (r *OrderReader) sameEpoch(orderID string, epoch uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading[orderID].epoch == epoch
}

type freshReader struct {
	r *OrderReader
}

func (f freshReader) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	v, err, _ := f.r.sfg.Do("fresh:"+orderID, func() (interface{}, error) {
		return f.r.load(ctx, orderID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Order), nil
}
