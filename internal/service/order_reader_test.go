package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fjod/go_cart/order-lifecycle/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderReader_ReadThrough(t *testing.T) {
	backend := newFakeBackend(paidOrder("order-1", domain.OrderStatusPending))
	c := newMockCache()
	reader := NewOrderReader(backend, c, zerolog.Nop())

	order, err := reader.GetOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", order.ID)
	assert.True(t, c.has("order-1"))

	_, err = reader.GetOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, 1, backend.getCount())
}

func TestOrderReader_CacheErrorFallsBackToBackend(t *testing.T) {
	backend := newFakeBackend(paidOrder("order-1", domain.OrderStatusPending))
	c := newMockCache()
	c.getErr = errors.New("redis get failed")
	reader := NewOrderReader(backend, c, zerolog.Nop())

	order, err := reader.GetOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, 1, backend.getCount())
}

func TestOrderReader_BackendErrorNotCached(t *testing.T) {
	backend := newFakeBackend()
	c := newMockCache()
	reader := NewOrderReader(backend, c, zerolog.Nop())

	_, err := reader.GetOrder(context.Background(), "order-1")
	assert.ErrorIs(t, err, errOrderMissing)
	assert.False(t, c.has("order-1"))
}

func TestOrderReader_FreshBypassesCache(t *testing.T) {
	backend := newFakeBackend(paidOrder("order-1", domain.OrderStatusPending))
	c := newMockCache()
	reader := NewOrderReader(backend, c, zerolog.Nop())

	_, err := reader.GetOrder(context.Background(), "order-1")
	require.NoError(t, err)
	require.NoError(t, backend.UpdateOrderStatus(context.Background(), "order-1", domain.OrderStatusProcessing))

	order, err := reader.Fresh().GetOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, order.Status)

	// the fresh read refreshed the cache
	cached, err := reader.GetOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, cached.Status)
	assert.Equal(t, 2, backend.getCount())
}

func TestOrderReader_Invalidate(t *testing.T) {
	backend := newFakeBackend(paidOrder("order-1", domain.OrderStatusPending))
	c := newMockCache()
	reader := NewOrderReader(backend, c, zerolog.Nop())

	_, err := reader.GetOrder(context.Background(), "order-1")
	require.NoError(t, err)

	reader.Invalidate("order-1")
	assert.False(t, c.has("order-1"))

	_, err = reader.GetOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, 2, backend.getCount())
}

func TestOrderReader_ConcurrentReads(t *testing.T) {
	backend := newFakeBackend(paidOrder("order-1", domain.OrderStatusPending))
	reader := NewOrderReader(backend, newMockCache(), zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := reader.GetOrder(context.Background(), "order-1")
			assert.NoError(t, err)
			assert.Equal(t, "order-1", order.ID)
		}()
	}
	wg.Wait()

	// singleflight plus the cache keep the backend from being hammered
	assert.LessOrEqual(t, backend.getCount(), 20)
	assert.GreaterOrEqual(t, backend.getCount(), 1)
}

func TestOrderReader_LoadStartedBeforeInvalidateIsNotCached(t *testing.T) {
	backend := newFakeBackend(paidOrder("order-1", domain.OrderStatusPending))
	c := newMockCache()
	reader := NewOrderReader(backend, c, zerolog.Nop())

	read, release := backend.holdNextGet()
	done := make(chan *domain.Order)
	go func() {
		order, err := reader.GetOrder(context.Background(), "order-1")
		assert.NoError(t, err)
		done <- order
	}()
	<-read

	require.NoError(t, backend.UpdateOrderStatus(context.Background(), "order-1", domain.OrderStatusProcessing))
	reader.Invalidate("order-1")
	release()

	stale := <-done
	assert.Equal(t, domain.OrderStatusPending, stale.Status)
	assert.False(t, c.has("order-1"), "a load that read before the invalidation must not be cached")

	order, err := reader.GetOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, order.Status)
	assert.True(t, c.has("order-1"))
}

func TestOrderReader_ReloadDoesNotJoinEarlierFreshRead(t *testing.T) {
	backend := newFakeBackend(paidOrder("order-1", domain.OrderStatusPending))
	c := newMockCache()
	reader := NewOrderReader(backend, c, zerolog.Nop())

	read, release := backend.holdNextGet()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := reader.Fresh().GetOrder(context.Background(), "order-1")
		assert.NoError(t, err)
	}()
	<-read

	require.NoError(t, backend.UpdateOrderStatus(context.Background(), "order-1", domain.OrderStatusProcessing))
	reader.Invalidate("order-1")

	order, err := reader.Reload(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, order.Status)

	release()
	<-done

	cached, err := reader.GetOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, cached.Status)
}
