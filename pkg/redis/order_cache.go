package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"shop_checkout/internal/model"

	rd "github.com/redis/go-redis/v9"
)

// luaSetIfVersion 版本号未变才回填缓存：
// KEYS[1]=版本 key, KEYS[2]=数据 key, ARGV[1]=读取时的版本, ARGV[2]=值, ARGV[3]=TTL(ms)
const luaSetIfVersion = `
local cur = redis.call('GET', KEYS[1])
if not cur then cur = '0' end
if cur ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`

var setIfVersionScript = rd.NewScript(luaSetIfVersion)

// OrderCache 订单读缓存：用户订单列表 + 单个订单详情。
// 读路径 miss 时带着读到的版本号回源，回填时版本号变了就放弃；
// 写路径提交后调用 Invalidate*，版本号 +1 并删除数据。
type OrderCache struct {
	rdb *rd.Client
	ttl time.Duration
}

func NewOrderCache(rdb *rd.Client, ttl time.Duration) *OrderCache {
	return &OrderCache{rdb: rdb, ttl: ttl}
}

func (c *OrderCache) GetUserOrders(ctx context.Context, userID int64) ([]model.Order, int64, bool, error) {
	var out []model.Order
	ver, ok, err := c.get(ctx, UserOrdersVersionKey(userID), UserOrdersKey(userID), &out)
	return out, ver, ok, err
}

// SetUserOrders 仅当版本号仍为 ver 时写入；stored=false 表示期间发生过失效。
func (c *OrderCache) SetUserOrders(ctx context.Context, userID int64, orders []model.Order, ver int64) (bool, error) {
	if orders == nil {
		orders = []model.Order{}
	}
	return c.set(ctx, UserOrdersVersionKey(userID), UserOrdersKey(userID), orders, ver)
}

func (c *OrderCache) GetOrder(ctx context.Context, orderID uint) (model.Order, int64, bool, error) {
	var out model.Order
	ver, ok, err := c.get(ctx, OrderVersionKey(orderID), OrderKey(orderID), &out)
	return out, ver, ok, err
}

func (c *OrderCache) SetOrder(ctx context.Context, o model.Order, ver int64) (bool, error) {
	return c.set(ctx, OrderVersionKey(o.ID), OrderKey(o.ID), o, ver)
}

func (c *OrderCache) InvalidateUserOrders(ctx context.Context, userID int64) error {
	return c.invalidate(ctx, UserOrdersVersionKey(userID), UserOrdersKey(userID))
}

func (c *OrderCache) InvalidateOrder(ctx context.Context, orderID uint) error {
	return c.invalidate(ctx, OrderVersionKey(orderID), OrderKey(orderID))
}

func (c *OrderCache) invalidate(ctx context.Context, verKey, key string) error {
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, verKey)
	pipe.Expire(ctx, verKey, c.versionTTL())
	pipe.Del(ctx, key)
	_, err := pipe.Exec(ctx)
	return err
}

// get 一次 MGET 同时取版本号和数据，保证二者来自同一时刻。
func (c *OrderCache) get(ctx context.Context, verKey, key string, dst any) (int64, bool, error) {
	vals, err := c.rdb.MGet(ctx, verKey, key).Result()
	if err != nil {
		return 0, false, err
	}
	var ver int64
	if s, ok := vals[0].(string); ok {
		ver, _ = strconv.ParseInt(s, 10, 64)
	}
	raw, ok := vals[1].(string)
	if !ok {
		return ver, false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		// 脏数据直接删掉，按未命中处理
		_ = c.rdb.Del(ctx, key).Err()
		return ver, false, nil
	}
	return ver, true, nil
}

func (c *OrderCache) set(ctx context.Context, verKey, key string, v any, ver int64) (bool, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	n, err := setIfVersionScript.Run(ctx, c.rdb, []string{verKey, key},
		strconv.FormatInt(ver, 10), b, c.ttlWithJitter().Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ttlWithJitter 加 0-10% 随机抖动，避免同一批 key 同时过期。
func (c *OrderCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	return c.ttl + time.Duration(rand.Int63n(int64(c.ttl)/10+1))
}

// versionTTL 版本号要比数据活得久，否则过期归零后旧版本的回填会被误放行。
func (c *OrderCache) versionTTL() time.Duration {
	if c.ttl <= 0 {
		return 24 * time.Hour
	}
	return 24*time.Hour + 2*c.ttl
}
