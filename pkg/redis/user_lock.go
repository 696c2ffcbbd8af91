package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// luaReleaseLockIfMatch 仅当锁值等于自己的 token 时才删除，避免误删别人续上的锁。
const luaReleaseLockIfMatch = `
local lockKey = KEYS[1]
local token = ARGV[1]
if redis.call('GET', lockKey) == token then
  return redis.call('DEL', lockKey)
end
return 0
`

// CheckoutLock 基于 SET NX PX 的用户级结算锁。
type CheckoutLock struct {
	rdb *rd.Client
	ttl time.Duration
}

func NewCheckoutLock(rdb *rd.Client, ttl time.Duration) *CheckoutLock {
	return &CheckoutLock{rdb: rdb, ttl: ttl}
}

// Lock 尝试占锁。acquired=false 表示该用户已有结算在途；
// err != nil 表示 Redis 不可用，由调用方决定是否降级放行。
func (l *CheckoutLock) Lock(ctx context.Context, userID int64) (func(context.Context), bool, error) {
	token := uuid.NewString()
	key := CheckoutLockKey(userID)
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	unlock := func(ctx context.Context) {
		_ = ReleaseLockIfMatch(ctx, l.rdb, key, token)
	}
	return unlock, true, nil
}

// ReleaseLockIfMatch 安全释放锁。
func ReleaseLockIfMatch(ctx context.Context, rdb *rd.Client, key, token string) error {
	_, err := rdb.Eval(ctx, luaReleaseLockIfMatch, []string{key}, token).Int()
	return err
}
