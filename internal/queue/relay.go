package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"shop_checkout/internal/model"

	rd "github.com/redis/go-redis/v9"
)

// RelayRecorder 转发结果计数（ok / failed / dropped）。
type RelayRecorder interface {
	EventRelayed(result string)
}

type nopRelayRecorder struct{}

func (nopRelayRecorder) EventRelayed(string) {}

// Relay 将 Redis Stream 事件异步转发到 Kafka。
// 语义：发布成功后才 ACK Stream，失败则保留消息等待重试。
type Relay struct {
	rdb *rd.Client
	pub Publisher
	log *slog.Logger
	rec RelayRecorder

	stream   string
	group    string
	consumer string
}

func NewRelay(rdb *rd.Client, pub Publisher, stream, group, consumer string, log *slog.Logger) *Relay {
	return &Relay{
		rdb:      rdb,
		pub:      pub,
		log:      log,
		rec:      nopRelayRecorder{},
		stream:   stream,
		group:    group,
		consumer: consumer,
	}
}

// WithRecorder 设置转发指标。
func (r *Relay) WithRecorder(rec RelayRecorder) *Relay {
	r.rec = rec
	return r
}

func (r *Relay) Run(ctx context.Context) {
	if err := r.ensureGroup(ctx); err != nil {
		r.log.Error("relay ensure group", "stream", r.stream, "err", err)
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		// 先处理当前消费者历史 pending，避免遗留消息长期堆积。
		msgs, err := r.readGroup(ctx, "0", 0)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			r.log.Warn("relay read pending", "err", err)
			time.Sleep(300 * time.Millisecond)
			continue
		}
		if len(msgs) == 0 {
			msgs, err = r.readGroup(ctx, ">", 2*time.Second)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return
				}
				r.log.Warn("relay read new", "err", err)
				time.Sleep(300 * time.Millisecond)
				continue
			}
		}

		for _, xm := range msgs {
			if err := r.processOne(ctx, xm); err != nil {
				r.log.Warn("relay process message", "stream_id", xm.ID, "err", err)
				time.Sleep(200 * time.Millisecond)
				break
			}
		}
	}
}

func (r *Relay) ensureGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

func (r *Relay) readGroup(ctx context.Context, streamID string, block time.Duration) ([]rd.XMessage, error) {
	streams, err := r.rdb.XReadGroup(ctx, &rd.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, streamID},
		Count:    16,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]rd.XMessage, 0, 16)
	for _, s := range streams {
		out = append(out, s.Messages...)
	}
	return out, nil
}

func (r *Relay) processOne(ctx context.Context, xm rd.XMessage) error {
	e, err := parseOrderEvent(xm.Values)
	if err != nil {
		// 脏消息直接 ACK 丢弃，避免阻塞队列。
		r.log.Error("relay drop malformed event", "stream_id", xm.ID, "err", err)
		r.rec.EventRelayed("dropped")
		if ackErr := r.ackAndDelete(ctx, xm.ID); ackErr != nil {
			return fmt.Errorf("parse failed: %v, ack failed: %w", err, ackErr)
		}
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.pub.Publish(pubCtx, e); err != nil {
		r.rec.EventRelayed("failed")
		return err
	}
	r.rec.EventRelayed("ok")
	return r.ackAndDelete(ctx, xm.ID)
}

func (r *Relay) ackAndDelete(ctx context.Context, id string) error {
	pipe := r.rdb.TxPipeline()
	pipe.XAck(ctx, r.stream, r.group, id)
	pipe.XDel(ctx, r.stream, id)
	_, err := pipe.Exec(ctx)
	return err
}

func parseOrderEvent(values map[string]any) (OrderEvent, error) {
	fields := make(map[string]string, 7)
	for _, k := range []string{"event_id", "type", "order_id", "user_id", "total", "status", "occurred_at"} {
		v, err := getStreamString(values, k)
		if err != nil {
			return OrderEvent{}, err
		}
		fields[k] = v
	}

	orderID, err := strconv.ParseUint(fields["order_id"], 10, 64)
	if err != nil {
		return OrderEvent{}, fmt.Errorf("invalid order_id %q", fields["order_id"])
	}
	userID, err := strconv.ParseInt(fields["user_id"], 10, 64)
	if err != nil {
		return OrderEvent{}, fmt.Errorf("invalid user_id %q", fields["user_id"])
	}
	total, err := strconv.ParseInt(fields["total"], 10, 64)
	if err != nil {
		return OrderEvent{}, fmt.Errorf("invalid total %q", fields["total"])
	}
	at, err := time.Parse(time.RFC3339Nano, fields["occurred_at"])
	if err != nil {
		return OrderEvent{}, fmt.Errorf("invalid occurred_at %q", fields["occurred_at"])
	}

	e := OrderEvent{
		EventID:    fields["event_id"],
		Type:       EventType(fields["type"]),
		OrderID:    uint(orderID),
		UserID:     userID,
		Total:      total,
		Status:     model.OrderStatus(fields["status"]),
		OccurredAt: at,
	}
	if err := e.Validate(); err != nil {
		return OrderEvent{}, err
	}
	return e, nil
}

func getStreamString(values map[string]any, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing field %s", key)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	default:
		return "", fmt.Errorf("unsupported field type %s: %T", key, v)
	}
}
