package queue

import (
	"context"
	"strconv"
	"time"

	"shop_checkout/internal/clock"
	"shop_checkout/internal/model"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// streamMaxLen Stream 近似裁剪长度，Relay 正常时远达不到。
const streamMaxLen = 100000

// StreamSink 把订单事件写入 Redis Stream（outbox），由 Relay 异步转发。
type StreamSink struct {
	rdb    *rd.Client
	stream string
	clk    clock.Clock
}

func NewStreamSink(rdb *rd.Client, stream string, clk clock.Clock) *StreamSink {
	return &StreamSink{rdb: rdb, stream: stream, clk: clk}
}

func (s *StreamSink) NotifyOrderCreated(ctx context.Context, orderID uint, userID int64, total int64) error {
	return s.add(ctx, OrderEvent{
		Type:    EventOrderCreated,
		OrderID: orderID,
		UserID:  userID,
		Total:   total,
		Status:  model.OrderPending,
	})
}

func (s *StreamSink) NotifyOrderUpdated(ctx context.Context, orderID uint, userID int64, status model.OrderStatus) error {
	return s.add(ctx, OrderEvent{
		Type:    EventOrderUpdated,
		OrderID: orderID,
		UserID:  userID,
		Status:  status,
	})
}

func (s *StreamSink) add(ctx context.Context, e OrderEvent) error {
	e.EventID = uuid.NewString()
	e.OccurredAt = s.clk.Now()
	return s.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: s.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"event_id":    e.EventID,
			"type":        string(e.Type),
			"order_id":    strconv.FormatUint(uint64(e.OrderID), 10),
			"user_id":     strconv.FormatInt(e.UserID, 10),
			"total":       strconv.FormatInt(e.Total, 10),
			"status":      string(e.Status),
			"occurred_at": e.OccurredAt.Format(time.RFC3339Nano),
		},
	}).Err()
}
