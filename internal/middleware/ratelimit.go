package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	rediskey "shop_checkout/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// luaRateLimit：Redis 滑动窗口限流 Lua 脚本（原子操作）
// KEYS[1]=限流key，ARGV[1]=当前毫秒时间戳，ARGV[2]=窗口开始时间戳，ARGV[3]=窗口毫秒数
// ARGV[4]=本次请求成员，ARGV[5]=窗口内上限
// 返回：当前窗口内的请求数（超限返回 -1）
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowMs = tonumber(ARGV[3])
local member = ARGV[4]

-- 删除窗口外的旧记录
redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)

if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('PEXPIRE', key, windowMs)
  return count + 1
else
  return -1
end
`

// RedisRateLimit Redis 分布式限流：已认证请求按用户计数，否则按 IP。
// Redis 出错时放行。
func RedisRateLimit(rdb *rd.Client, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := "ip:" + c.ClientIP()
		if who, ok := IdentityFrom(c); ok {
			subject = fmt.Sprintf("user:%d", who.UserID)
		}
		key := rediskey.RateLimitKey(scope, subject)

		now := time.Now().UnixMilli()
		windowMs := window.Milliseconds()
		res, err := rdb.Eval(c.Request.Context(), luaRateLimit, []string{key},
			now, now-windowMs, windowMs, uuid.NewString(), limit).Int()
		if err != nil {
			c.Next()
			return
		}

		if res < 0 {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			abort(c, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limit-res))
		c.Next()
	}
}
