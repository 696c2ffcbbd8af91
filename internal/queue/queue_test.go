package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"shop_checkout/internal/clock"
	"shop_checkout/internal/model"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStream = "shop:order_events"

type fakePublisher struct {
	got []OrderEvent
	err error
}

func (f *fakePublisher) Publish(_ context.Context, e OrderEvent) error {
	if f.err != nil {
		return f.err
	}
	f.got = append(f.got, e)
	return nil
}

type countingRecorder map[string]int

func (c countingRecorder) EventRelayed(result string) { c[result]++ }

func setup(t *testing.T) *rd.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func newRelay(t *testing.T, rdb *rd.Client, pub Publisher) (*Relay, countingRecorder) {
	t.Helper()
	rec := countingRecorder{}
	r := NewRelay(rdb, pub, testStream, "relay", "relay-1", slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithRecorder(rec)
	require.NoError(t, r.ensureGroup(context.Background()))
	require.NoError(t, r.ensureGroup(context.Background()), "group creation is idempotent")
	return r, rec
}

func pending(t *testing.T, rdb *rd.Client) []rd.XMessage {
	t.Helper()
	msgs, err := rdb.XRange(context.Background(), testStream, "-", "+").Result()
	require.NoError(t, err)
	return msgs
}

func TestSinkAndRelay(t *testing.T) {
	ctx := context.Background()
	rdb := setup(t)
	at := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)
	sink := NewStreamSink(rdb, testStream, clock.NewManual(at))
	pub := &fakePublisher{}
	r, rec := newRelay(t, rdb, pub)

	require.NoError(t, sink.NotifyOrderCreated(ctx, 42, 7, 1999))
	require.NoError(t, sink.NotifyOrderUpdated(ctx, 42, 7, model.OrderPaid))

	msgs := pending(t, rdb)
	require.Len(t, msgs, 2)
	for _, xm := range msgs {
		require.NoError(t, r.processOne(ctx, xm))
	}

	require.Len(t, pub.got, 2)
	created := pub.got[0]
	assert.Equal(t, EventOrderCreated, created.Type)
	assert.Equal(t, uint(42), created.OrderID)
	assert.Equal(t, int64(7), created.UserID)
	assert.Equal(t, int64(1999), created.Total)
	assert.Equal(t, model.OrderPending, created.Status)
	assert.True(t, at.Equal(created.OccurredAt))
	assert.NotEmpty(t, created.EventID)

	assert.Equal(t, EventOrderUpdated, pub.got[1].Type)
	assert.Equal(t, model.OrderPaid, pub.got[1].Status)
	assert.NotEqual(t, created.EventID, pub.got[1].EventID)

	assert.Empty(t, pending(t, rdb), "delivered events are removed from the outbox")
	assert.Equal(t, 2, rec["ok"])
}

func TestRelayKeepsEventWhenPublishFails(t *testing.T) {
	ctx := context.Background()
	rdb := setup(t)
	sink := NewStreamSink(rdb, testStream, clock.NewSystem())
	r, rec := newRelay(t, rdb, &fakePublisher{err: errors.New("broker down")})

	require.NoError(t, sink.NotifyOrderCreated(ctx, 1, 2, 300))
	msgs := pending(t, rdb)
	require.Len(t, msgs, 1)

	assert.Error(t, r.processOne(ctx, msgs[0]))
	assert.Len(t, pending(t, rdb), 1)
	assert.Equal(t, 1, rec["failed"])
}

func TestRelayDropsMalformedEvent(t *testing.T) {
	ctx := context.Background()
	rdb := setup(t)
	pub := &fakePublisher{}
	r, rec := newRelay(t, rdb, pub)

	require.NoError(t, rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: testStream,
		Values: map[string]any{"event_id": "e1", "type": "order.created"},
	}).Err())
	msgs := pending(t, rdb)
	require.Len(t, msgs, 1)

	require.NoError(t, r.processOne(ctx, msgs[0]))
	assert.Empty(t, pub.got)
	assert.Empty(t, pending(t, rdb))
	assert.Equal(t, 1, rec["dropped"])
}

func TestParseOrderEvent(t *testing.T) {
	valid := func() map[string]any {
		return map[string]any{
			"event_id":    "e1",
			"type":        "order.updated",
			"order_id":    "9",
			"user_id":     "3",
			"total":       "0",
			"status":      "shipped",
			"occurred_at": "2026-05-01T08:30:00Z",
		}
	}

	e, err := parseOrderEvent(valid())
	require.NoError(t, err)
	assert.Equal(t, model.OrderShipped, e.Status)

	cases := map[string]func(m map[string]any){
		"missing field":  func(m map[string]any) { delete(m, "user_id") },
		"bad order id":   func(m map[string]any) { m["order_id"] = "x" },
		"zero order id":  func(m map[string]any) { m["order_id"] = "0" },
		"unknown type":   func(m map[string]any) { m["type"] = "order.deleted" },
		"unknown status": func(m map[string]any) { m["status"] = "lost" },
		"bad timestamp":  func(m map[string]any) { m["occurred_at"] = "yesterday" },
		"unsupported":    func(m map[string]any) { m["total"] = 1.5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			m := valid()
			mutate(m)
			_, err := parseOrderEvent(m)
			assert.Error(t, err)
		})
	}
}

type recordingHandler struct{ got []OrderEvent }

func (h *recordingHandler) Handle(_ context.Context, e OrderEvent) error {
	h.got = append(h.got, e)
	return nil
}

func TestDirectPublisher(t *testing.T) {
	h := &recordingHandler{}
	e := OrderEvent{EventID: "e", Type: EventOrderCreated, OrderID: 1, UserID: 1, Status: model.OrderPending}
	require.NoError(t, DirectPublisher{H: h}.Publish(context.Background(), e))
	assert.Equal(t, []OrderEvent{e}, h.got)
}
