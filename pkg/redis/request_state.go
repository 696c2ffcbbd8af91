package redis

import (
	"context"
	"strconv"
	"time"

	rd "github.com/redis/go-redis/v9"
)

const (
	// RequestPending 结算进行中。
	RequestPending = "pending"
	// RequestSuccess 结算成功，OrderID 可用。
	RequestSuccess = "success"
	// RequestFailed 结算被业务规则拒绝（终态）。
	RequestFailed = "failed"
)

// RequestState 对应 Redis 内 Idempotency-Key 的状态哈希。
type RequestState struct {
	Key     string
	Status  string
	OrderID uint
	Reason  string
	// Code 失败时原请求返回的 HTTP 状态码，重放时原样返回。
	Code int
}

// RequestStates 管理 POST /orders 的幂等键。
type RequestStates struct {
	rdb *rd.Client
	ttl time.Duration
}

func NewRequestStates(rdb *rd.Client, ttl time.Duration) *RequestStates {
	return &RequestStates{rdb: rdb, ttl: ttl}
}

// Begin 原子地占用幂等键（HSETNX status=pending）。
// started=false 时返回已存在的状态，调用方据此重放或拒绝。
func (s *RequestStates) Begin(ctx context.Context, userID int64, idemKey string) (RequestState, bool, error) {
	key := RequestStateKey(userID, idemKey)
	ok, err := s.rdb.HSetNX(ctx, key, "status", RequestPending).Result()
	if err != nil {
		return RequestState{}, false, err
	}
	if ok {
		if err := s.rdb.Expire(ctx, key, s.ttl).Err(); err != nil {
			return RequestState{}, false, err
		}
		return RequestState{Key: idemKey, Status: RequestPending}, true, nil
	}
	st, _, err := s.Get(ctx, userID, idemKey)
	return st, false, err
}

// Get 查询幂等键当前状态。found=false 表示 key 不存在。
func (s *RequestStates) Get(ctx context.Context, userID int64, idemKey string) (RequestState, bool, error) {
	m, err := s.rdb.HGetAll(ctx, RequestStateKey(userID, idemKey)).Result()
	if err != nil {
		return RequestState{}, false, err
	}
	if len(m) == 0 {
		return RequestState{}, false, nil
	}
	out := RequestState{Key: idemKey, Status: m["status"], Reason: m["reason"]}
	if out.Status == "" {
		out.Status = RequestPending
	}
	if v := m["code"]; v != "" {
		if code, err := strconv.Atoi(v); err == nil {
			out.Code = code
		}
	}
	if v := m["order_id"]; v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err == nil {
			out.OrderID = uint(id)
		}
	}
	return out, true, nil
}

// Complete 标记成功并记录订单号，刷新 TTL。
func (s *RequestStates) Complete(ctx context.Context, userID int64, idemKey string, orderID uint) error {
	return s.put(ctx, userID, idemKey, RequestSuccess, strconv.FormatUint(uint64(orderID), 10), "", 0)
}

// Fail 标记业务失败，后续重放直接返回同一状态码和原因。
func (s *RequestStates) Fail(ctx context.Context, userID int64, idemKey string, code int, reason string) error {
	return s.put(ctx, userID, idemKey, RequestFailed, "", reason, code)
}

// Forget 删除幂等键：可重试的失败（冲突/内部错误）不应占着 key。
func (s *RequestStates) Forget(ctx context.Context, userID int64, idemKey string) error {
	return s.rdb.Del(ctx, RequestStateKey(userID, idemKey)).Err()
}

func (s *RequestStates) put(ctx context.Context, userID int64, idemKey, status, orderID, reason string, code int) error {
	key := RequestStateKey(userID, idemKey)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"status", status,
		"order_id", orderID,
		"reason", reason,
		"code", code,
	)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}
