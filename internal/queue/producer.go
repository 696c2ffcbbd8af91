package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
)

// Publisher 把一条订单事件投递到下游。
type Publisher interface {
	Publish(ctx context.Context, e OrderEvent) error
}

// Producer 封装 Kafka 写入器，外面套一层熔断器。
type Producer struct {
	w  *kafka.Writer
	cb *gobreaker.CircuitBreaker[struct{}]
}

// NewProducer 创建生产者并配置可靠性参数：
// - Hash + Key: 同一订单的事件落到同一分区，保证单订单有序。
// - RequireAll: 等待 ISR 副本确认，降低消息丢失风险。
// - 连续失败 5 次熔断 10s，期间 Publish 直接失败，Stream 中的消息留待重试。
func NewProducer(brokers []string, topic string, log *slog.Logger) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  5,
			WriteTimeout: 5 * time.Second,
			ReadTimeout:  5 * time.Second,
			BatchTimeout: 50 * time.Millisecond,
		},
		cb: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "kafka-producer",
			MaxRequests: 1,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

func (p *Producer) Close() error { return p.w.Close() }

// Publish 同步写入一条订单事件，key 为订单号。
func (p *Producer) Publish(ctx context.Context, e OrderEvent) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = p.cb.Execute(func() (struct{}, error) {
		return struct{}{}, p.w.WriteMessages(ctx, kafka.Message{
			Key:   []byte(strconv.FormatUint(uint64(e.OrderID), 10)),
			Value: b,
		})
	})
	return err
}

// DirectPublisher 未配置 Kafka 时跳过消息队列，Relay 直接交给 Handler。
type DirectPublisher struct {
	H Handler
}

func (d DirectPublisher) Publish(ctx context.Context, e OrderEvent) error {
	return d.H.Handle(ctx, e)
}
