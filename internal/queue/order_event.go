package queue

import (
	"fmt"
	"time"

	"shop_checkout/internal/model"
)

type EventType string

const (
	EventOrderCreated EventType = "order.created"
	EventOrderUpdated EventType = "order.updated"
)

// OrderEvent 订单事件：先写 Redis Stream，再由 Relay 投递到 Kafka。
type OrderEvent struct {
	EventID    string            `json:"event_id"`
	Type       EventType         `json:"type"`
	OrderID    uint              `json:"order_id"`
	UserID     int64             `json:"user_id"`
	Total      int64             `json:"total"` // 分
	Status     model.OrderStatus `json:"status"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (e OrderEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if e.Type != EventOrderCreated && e.Type != EventOrderUpdated {
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.OrderID == 0 {
		return fmt.Errorf("order_id is required")
	}
	if e.UserID <= 0 {
		return fmt.Errorf("user_id is required")
	}
	if !e.Status.IsValid() {
		return fmt.Errorf("invalid status %q", e.Status)
	}
	return nil
}
