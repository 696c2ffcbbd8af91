package redis

import (
	"context"
	"testing"
	"time"

	"shop_checkout/internal/model"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *rd.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestOrderCache(t *testing.T) {
	mr, client := setupRedis(t)
	cache := NewOrderCache(client, 10*time.Minute)
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		_, ver, ok, err := cache.GetUserOrders(ctx, 1)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, ver)
	})

	t.Run("set then hit", func(t *testing.T) {
		orders := []model.Order{{ID: 2, UserID: 1, Total: 160, Status: model.OrderPending}}
		stored, err := cache.SetUserOrders(ctx, 1, orders, 0)
		require.NoError(t, err)
		require.True(t, stored)

		got, _, ok, err := cache.GetUserOrders(ctx, 1)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, orders[0].Total, got[0].Total)

		ttl := mr.TTL(UserOrdersKey(1))
		assert.GreaterOrEqual(t, ttl, 10*time.Minute)
		assert.LessOrEqual(t, ttl, 11*time.Minute)
	})

	t.Run("empty list is cached as a hit", func(t *testing.T) {
		_, err := cache.SetUserOrders(ctx, 9, nil, 0)
		require.NoError(t, err)
		got, _, ok, err := cache.GetUserOrders(ctx, 9)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, got)
	})

	t.Run("invalidate", func(t *testing.T) {
		_, err := cache.SetOrder(ctx, model.Order{ID: 2, UserID: 1}, 0)
		require.NoError(t, err)
		require.NoError(t, cache.InvalidateUserOrders(ctx, 1))
		require.NoError(t, cache.InvalidateOrder(ctx, 2))
		assert.False(t, mr.Exists(UserOrdersKey(1)))
		assert.False(t, mr.Exists(OrderKey(2)))

		_, ver, _, err := cache.GetOrder(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(1), ver)
		assert.Greater(t, mr.TTL(OrderVersionKey(2)), time.Duration(0))
	})

	t.Run("fill read before an invalidation is discarded", func(t *testing.T) {
		_, ver, ok, err := cache.GetOrder(ctx, 3)
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, cache.InvalidateOrder(ctx, 3))

		stored, err := cache.SetOrder(ctx, model.Order{ID: 3, Status: model.OrderPending}, ver)
		require.NoError(t, err)
		assert.False(t, stored)
		assert.False(t, mr.Exists(OrderKey(3)))

		_, ver, _, err = cache.GetOrder(ctx, 3)
		require.NoError(t, err)
		stored, err = cache.SetOrder(ctx, model.Order{ID: 3, Status: model.OrderCancelled}, ver)
		require.NoError(t, err)
		assert.True(t, stored)

		got, _, ok, err := cache.GetOrder(ctx, 3)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, model.OrderCancelled, got.Status)
	})

	t.Run("corrupt entry is dropped", func(t *testing.T) {
		require.NoError(t, mr.Set(OrderKey(5), "{not json"))
		_, _, ok, err := cache.GetOrder(ctx, 5)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.False(t, mr.Exists(OrderKey(5)))
	})
}

func TestCheckoutLock(t *testing.T) {
	mr, client := setupRedis(t)
	lock := NewCheckoutLock(client, 30*time.Second)
	ctx := context.Background()

	unlock, ok, err := lock.Lock(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lock.Lock(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok, "second checkout of the same user must wait")

	_, ok, err = lock.Lock(ctx, 43)
	require.NoError(t, err)
	assert.True(t, ok, "other users are independent")

	unlock(ctx)
	assert.False(t, mr.Exists(CheckoutLockKey(42)))

	t.Run("stale unlock keeps a lock taken by someone else", func(t *testing.T) {
		unlock, ok, err := lock.Lock(ctx, 44)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, mr.Set(CheckoutLockKey(44), "someone-else"))
		unlock(ctx)
		assert.True(t, mr.Exists(CheckoutLockKey(44)))
	})
}

func TestRequestStates(t *testing.T) {
	mr, client := setupRedis(t)
	states := NewRequestStates(client, time.Hour)
	ctx := context.Background()

	st, started, err := states.Begin(ctx, 1, "k1")
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, RequestPending, st.Status)
	assert.Greater(t, mr.TTL(RequestStateKey(1, "k1")), time.Duration(0))

	st, started, err = states.Begin(ctx, 1, "k1")
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, RequestPending, st.Status)

	require.NoError(t, states.Complete(ctx, 1, "k1", 77))
	st, found, err := states.Get(ctx, 1, "k1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, RequestSuccess, st.Status)
	assert.Equal(t, uint(77), st.OrderID)

	require.NoError(t, states.Fail(ctx, 1, "k2", 404, "Cart not found"))
	st, _, err = states.Get(ctx, 1, "k2")
	require.NoError(t, err)
	assert.Equal(t, RequestFailed, st.Status)
	assert.Equal(t, "Cart not found", st.Reason)
	assert.Equal(t, 404, st.Code)

	require.NoError(t, states.Forget(ctx, 1, "k1"))
	_, found, err = states.Get(ctx, 1, "k1")
	require.NoError(t, err)
	assert.False(t, found)
}
