package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler 处理一条订单事件；必须按 EventID 幂等。
type Handler interface {
	Handle(ctx context.Context, e OrderEvent) error
}

const handleAttempts = 3

type Consumer struct {
	r   *kafka.Reader
	h   Handler
	log *slog.Logger
}

func NewConsumer(brokers []string, topic, groupID string, h Handler, log *slog.Logger) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		h:   h,
		log: log,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

// Run 拉取 -> 处理 -> 提交位点。处理失败有限次重试后仍提交，避免毒消息卡住分区。
func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			return // ctx cancel / reader 关闭
		}

		var e OrderEvent
		if err := json.Unmarshal(m.Value, &e); err != nil {
			c.log.Error("consumer unmarshal", "offset", m.Offset, "err", err)
		} else if err := e.Validate(); err != nil {
			c.log.Error("consumer invalid event", "offset", m.Offset, "err", err)
		} else {
			c.handle(ctx, e)
		}

		if err := c.r.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("consumer commit", "offset", m.Offset, "err", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, e OrderEvent) {
	for attempt := 1; attempt <= handleAttempts; attempt++ {
		err := c.h.Handle(ctx, e)
		if err == nil {
			return
		}
		c.log.Warn("consumer handle failed", "event_id", e.EventID, "order_id", e.OrderID, "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
		}
	}
	c.log.Error("consumer dropped event", "event_id", e.EventID, "order_id", e.OrderID)
}
