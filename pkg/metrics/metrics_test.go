package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	t.Parallel()
	m := New("orders")

	m.CheckoutOutcome("success")
	m.CheckoutOutcome("success")
	m.CheckoutOutcome("conflict")
	m.OrderTransition("paid")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("paid")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	t.Parallel()
	m := New("orders")
	m.EventRelayed("ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `shop_orders_order_events_relayed_total{result="ok"} 1`)
}
