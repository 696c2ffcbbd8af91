package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"shop_checkout/internal/cart"
	"shop_checkout/internal/checkout"
	"shop_checkout/internal/coupon"
	"shop_checkout/internal/model"
	"shop_checkout/internal/notify"
	"shop_checkout/internal/router"
	"shop_checkout/internal/store"
	"shop_checkout/internal/testutil"
	"shop_checkout/pkg/metrics"
	rediskey "shop_checkout/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

type server struct {
	h        http.Handler
	st       *store.Store
	requests *rediskey.RequestStates
}

func newServer(t *testing.T, rate router.RateLimit) *server {
	t.Helper()
	st := store.New(testutil.NewDB(t))
	_, rdb := testutil.NewRedis(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New("test")
	requests := rediskey.NewRequestStates(rdb, time.Hour)

	svc := checkout.NewService(
		checkout.Stores{Tx: st, Carts: st, Products: st, Coupons: st, Orders: st},
		checkout.WithCache(rediskey.NewOrderCache(rdb, time.Minute)),
		checkout.WithGuard(rediskey.NewCheckoutLock(rdb, 10*time.Second)),
		checkout.WithRecorder(m),
		checkout.WithLogger(log),
	)
	r := gin.New()
	router.Setup(r, router.Deps{
		Checkout:      svc,
		Carts:         cart.NewService(st),
		Coupons:       coupon.NewService(st),
		Notifications: notify.NewService(st, log),
		Products:      st,
		Redis:         rdb,
		Requests:      requests,
		Metrics:       m,
		OrderRate:     rate,
		Log:           log,
	})
	return &server{h: r, st: st, requests: requests}
}

type call struct {
	method, path string
	user         int64
	role         model.Role
	body         any
	headers      map[string]string
}

type reply struct {
	Code   int
	Header http.Header
	Body   struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
}

func (s *server) do(t *testing.T, c call) reply {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		b, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set("Content-Type", "application/json")
	if c.user != 0 {
		req.Header.Set("X-User-ID", strconv.FormatInt(c.user, 10))
	}
	if c.role != "" {
		req.Header.Set("X-User-Role", string(c.role))
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.h.ServeHTTP(w, req)

	out := reply{Code: w.Code, Header: w.Header()}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out.Body), w.Body.String())
	}
	return out
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type orderSummary struct {
	OrderID  uint  `json:"orderId"`
	UserID   int64 `json:"userId"`
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

type orderDetail struct {
	OrderID uint              `json:"orderId"`
	Status  model.OrderStatus `json:"status"`
	Items   []model.OrderItem `json:"items"`
}

const (
	buyer  = int64(1)
	seller = int64(50)
	admin  = int64(99)
)

// seedCart 卖家上架一个商品，买家加购 qty 件。
func (s *server) seedCart(t *testing.T, price, stock, qty int64) uint {
	t.Helper()
	res := s.do(t, call{method: http.MethodPost, path: "/products", user: seller, role: model.RoleSeller,
		body: gin.H{"title": "Desk", "price": price, "stock": stock}})
	require.Equal(t, http.StatusCreated, res.Code)
	p := decode[struct {
		Product model.Product `json:"product"`
	}](t, res.Body.Data).Product

	res = s.do(t, call{method: http.MethodPost, path: "/cart/items", user: buyer,
		body: gin.H{"productId": p.ID, "quantity": qty}})
	require.Equal(t, http.StatusOK, res.Code, res.Body.Message)
	return p.ID
}

func TestPingAndAuth(t *testing.T) {
	s := newServer(t, router.RateLimit{})

	assert.Equal(t, http.StatusOK, s.do(t, call{method: http.MethodGet, path: "/ping"}).Code)

	res := s.do(t, call{method: http.MethodPost, path: "/orders"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "error", res.Body.Status)
}

func TestOrderFlow(t *testing.T) {
	s := newServer(t, router.RateLimit{})
	pid := s.seedCart(t, 1000, 5, 2)

	res := s.do(t, call{method: http.MethodPost, path: "/coupons", user: seller, role: model.RoleSeller,
		body: gin.H{"code": "take10", "type": "percentage", "value": 10}})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.Message)

	res = s.do(t, call{method: http.MethodPost, path: "/orders", user: buyer, body: gin.H{"couponCode": "TAKE10"}})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.Message)
	assert.Equal(t, "success", res.Body.Status)
	assert.Equal(t, "Order created successfully", res.Body.Message)
	created := decode[struct {
		Order orderSummary `json:"order"`
	}](t, res.Body.Data).Order
	assert.Equal(t, orderSummary{OrderID: created.OrderID, UserID: buyer, Subtotal: 2000, Discount: 200, Total: 1800}, created)
	orderPath := "/orders/" + strconv.FormatUint(uint64(created.OrderID), 10)

	p, err := s.st.GetProduct(context.Background(), pid)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.Stock)

	t.Run("list", func(t *testing.T) {
		res := s.do(t, call{method: http.MethodGet, path: "/orders", user: buyer})
		require.Equal(t, http.StatusOK, res.Code)
		list := decode[struct {
			Orders []orderDetail `json:"orders"`
		}](t, res.Body.Data).Orders
		require.Len(t, list, 1)
		assert.Equal(t, created.OrderID, list[0].OrderID)
	})

	t.Run("detail", func(t *testing.T) {
		res := s.do(t, call{method: http.MethodGet, path: orderPath, user: buyer})
		require.Equal(t, http.StatusOK, res.Code)
		o := decode[struct {
			Order orderDetail `json:"order"`
		}](t, res.Body.Data).Order
		assert.Equal(t, model.OrderPending, o.Status)
		require.Len(t, o.Items, 1)
		assert.Equal(t, int64(1000), o.Items[0].PriceAtOrder)

		assert.Equal(t, http.StatusForbidden, s.do(t, call{method: http.MethodGet, path: orderPath, user: 2}).Code)
		assert.Equal(t, http.StatusBadRequest, s.do(t, call{method: http.MethodGet, path: "/orders/abc", user: buyer}).Code)
		assert.Equal(t, http.StatusNotFound, s.do(t, call{method: http.MethodGet, path: "/orders/999", user: buyer}).Code)
	})

	t.Run("status updates", func(t *testing.T) {
		res := s.do(t, call{method: http.MethodPut, path: orderPath, user: buyer, body: gin.H{"status": "paid"}})
		assert.Equal(t, http.StatusForbidden, res.Code)

		res = s.do(t, call{method: http.MethodPut, path: orderPath, user: admin, role: model.RoleAdmin, body: gin.H{"status": "cancelled"}})
		assert.Equal(t, http.StatusBadRequest, res.Code)

		res = s.do(t, call{method: http.MethodPut, path: orderPath, user: admin, role: model.RoleAdmin, body: gin.H{}})
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, "Status is required", res.Body.Message)

		res = s.do(t, call{method: http.MethodPut, path: orderPath, user: admin, role: model.RoleAdmin, body: gin.H{"status": "paid"}})
		require.Equal(t, http.StatusOK, res.Code, res.Body.Message)
		o := decode[struct {
			Order orderDetail `json:"order"`
		}](t, res.Body.Data).Order
		assert.Equal(t, model.OrderPaid, o.Status)

		res = s.do(t, call{method: http.MethodDelete, path: orderPath, user: buyer})
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Contains(t, res.Body.Message, "Only pending orders can be cancelled")
	})
}

func TestCheckoutErrors(t *testing.T) {
	s := newServer(t, router.RateLimit{})

	res := s.do(t, call{method: http.MethodPost, path: "/orders", user: buyer})
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "Cart not found", res.Body.Message)

	s.seedCart(t, 100, 1, 1)
	res = s.do(t, call{method: http.MethodPost, path: "/orders", user: buyer, body: gin.H{"couponCode": "NOPE"}})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Invalid coupon", res.Body.Message)

	res = s.do(t, call{method: http.MethodPost, path: "/cart/items", user: buyer, body: gin.H{"productId": 1, "quantity": 5}})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Insufficient stock for Desk", res.Body.Message)
}

func TestCancelRestoresStock(t *testing.T) {
	s := newServer(t, router.RateLimit{})
	pid := s.seedCart(t, 300, 4, 3)

	res := s.do(t, call{method: http.MethodPost, path: "/orders", user: buyer})
	require.Equal(t, http.StatusCreated, res.Code)
	id := decode[struct {
		Order orderSummary `json:"order"`
	}](t, res.Body.Data).Order.OrderID
	path := "/orders/" + strconv.FormatUint(uint64(id), 10)

	assert.Equal(t, http.StatusForbidden, s.do(t, call{method: http.MethodDelete, path: path, user: 7}).Code)

	res = s.do(t, call{method: http.MethodDelete, path: path, user: buyer})
	require.Equal(t, http.StatusOK, res.Code)
	p, err := s.st.GetProduct(context.Background(), pid)
	require.NoError(t, err)
	assert.Equal(t, int64(4), p.Stock)

	res = s.do(t, call{method: http.MethodDelete, path: path, user: buyer})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Order is already cancelled", res.Body.Message)
}

func TestIdempotentCheckout(t *testing.T) {
	s := newServer(t, router.RateLimit{})
	pid := s.seedCart(t, 100, 10, 1)
	key := map[string]string{"Idempotency-Key": "k-1"}

	first := s.do(t, call{method: http.MethodPost, path: "/orders", user: buyer, headers: key})
	require.Equal(t, http.StatusCreated, first.Code)
	second := s.do(t, call{method: http.MethodPost, path: "/orders", user: buyer, headers: key})
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header.Get("Idempotent-Replayed"))
	assert.JSONEq(t, string(first.Body.Data), string(second.Body.Data))

	p, err := s.st.GetProduct(context.Background(), pid)
	require.NoError(t, err)
	assert.Equal(t, int64(9), p.Stock, "replay does not checkout again")

	t.Run("key in flight", func(t *testing.T) {
		_, started, err := s.requests.Begin(context.Background(), buyer, "k-2")
		require.NoError(t, err)
		require.True(t, started)
		res := s.do(t, call{method: http.MethodPost, path: "/orders", user: buyer, headers: map[string]string{"Idempotency-Key": "k-2"}})
		assert.Equal(t, http.StatusConflict, res.Code)
	})

	t.Run("rejection is remembered", func(t *testing.T) {
		h := map[string]string{"Idempotency-Key": "k-3"}
		res := s.do(t, call{method: http.MethodPost, path: "/orders", user: buyer, headers: h})
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, "Cart is empty", res.Body.Message)

		s.seedCart(t, 100, 10, 1)
		res = s.do(t, call{method: http.MethodPost, path: "/orders", user: buyer, headers: h})
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, "Cart is empty", res.Body.Message)
		assert.Equal(t, "true", res.Header.Get("Idempotent-Replayed"))
	})

	t.Run("replayed rejection keeps its status", func(t *testing.T) {
		h := map[string]string{"Idempotency-Key": "nf-1"}
		const cartless = int64(4242)
		first := s.do(t, call{method: http.MethodPost, path: "/orders", user: cartless, headers: h})
		require.Equal(t, http.StatusNotFound, first.Code)

		second := s.do(t, call{method: http.MethodPost, path: "/orders", user: cartless, headers: h})
		assert.Equal(t, http.StatusNotFound, second.Code)
		assert.Equal(t, first.Body.Message, second.Body.Message)
		assert.Equal(t, "true", second.Header.Get("Idempotent-Replayed"))
	})
}

func TestOrderRateLimit(t *testing.T) {
	s := newServer(t, router.RateLimit{Limit: 1, Window: time.Minute})

	assert.Equal(t, http.StatusNotFound, s.do(t, call{method: http.MethodPost, path: "/orders", user: buyer}).Code)
	res := s.do(t, call{method: http.MethodPost, path: "/orders", user: buyer})
	assert.Equal(t, http.StatusTooManyRequests, res.Code)
	assert.Equal(t, "error", res.Body.Status)
	assert.Equal(t, http.StatusOK, s.do(t, call{method: http.MethodGet, path: "/orders", user: buyer}).Code, "reads are not limited")
}

func TestCouponAdministration(t *testing.T) {
	s := newServer(t, router.RateLimit{})

	res := s.do(t, call{method: http.MethodPost, path: "/coupons", user: buyer,
		body: gin.H{"code": "X", "type": "fixed", "value": 1}})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = s.do(t, call{method: http.MethodPost, path: "/coupons", user: seller, role: model.RoleSeller,
		body: gin.H{"code": "HALF", "type": "percentage", "value": 150}})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = s.do(t, call{method: http.MethodPost, path: "/coupons", user: seller, role: model.RoleSeller,
		body: gin.H{"code": "HALF", "type": "bogo", "value": 5}})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Type must be percentage or fixed", res.Body.Message)

	body := gin.H{"code": "HALF", "type": "percentage", "value": 50, "maxDiscount": 500}
	res = s.do(t, call{method: http.MethodPost, path: "/coupons", user: seller, role: model.RoleSeller, body: body})
	require.Equal(t, http.StatusCreated, res.Code)
	cp := decode[struct {
		Coupon model.Coupon `json:"coupon"`
	}](t, res.Body.Data).Coupon

	res = s.do(t, call{method: http.MethodPost, path: "/coupons", user: seller, role: model.RoleSeller, body: body})
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "A coupon with this code already exists", res.Body.Message)

	path := "/coupons/" + strconv.FormatUint(uint64(cp.ID), 10)
	assert.Equal(t, http.StatusForbidden, s.do(t, call{method: http.MethodGet, path: path, user: 51, role: model.RoleSeller}).Code)

	res = s.do(t, call{method: http.MethodPut, path: path, user: seller, role: model.RoleSeller, body: gin.H{"isActive": false}})
	require.Equal(t, http.StatusOK, res.Code)

	assert.Equal(t, http.StatusForbidden, s.do(t, call{method: http.MethodGet, path: "/coupons", user: seller, role: model.RoleSeller}).Code)
	res = s.do(t, call{method: http.MethodGet, path: "/coupons?isActive=false", user: admin, role: model.RoleAdmin})
	require.Equal(t, http.StatusOK, res.Code)
	page := decode[coupon.Page](t, res.Body.Data)
	assert.Equal(t, int64(1), page.Total)

	res = s.do(t, call{method: http.MethodGet, path: "/coupons/mine", user: seller, role: model.RoleSeller})
	require.Equal(t, http.StatusOK, res.Code)

	assert.Equal(t, http.StatusOK, s.do(t, call{method: http.MethodDelete, path: path, user: admin, role: model.RoleAdmin}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, call{method: http.MethodGet, path: path, user: seller, role: model.RoleSeller}).Code)
}

func TestCartEndpoints(t *testing.T) {
	s := newServer(t, router.RateLimit{})

	res := s.do(t, call{method: http.MethodGet, path: "/cart", user: buyer})
	require.Equal(t, http.StatusOK, res.Code)

	pid := s.seedCart(t, 250, 5, 1)
	itemPath := "/cart/items/" + strconv.FormatUint(uint64(pid), 10)

	res = s.do(t, call{method: http.MethodPut, path: itemPath, user: buyer, body: gin.H{"quantity": 3}})
	require.Equal(t, http.StatusOK, res.Code)
	v := decode[cart.View](t, res.Body.Data)
	assert.Equal(t, int64(750), v.Total)

	res = s.do(t, call{method: http.MethodPost, path: "/cart/items", user: buyer, body: gin.H{"productId": pid, "quantity": 0}})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	assert.Equal(t, http.StatusOK, s.do(t, call{method: http.MethodDelete, path: itemPath, user: buyer}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, call{method: http.MethodDelete, path: itemPath, user: buyer}).Code)
	assert.Equal(t, http.StatusOK, s.do(t, call{method: http.MethodDelete, path: "/cart", user: buyer}).Code)

	res = s.do(t, call{method: http.MethodPost, path: "/cart/items", user: buyer, body: gin.H{"productId": 404, "quantity": 1}})
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "Product not found", res.Body.Message)
}

func TestNotificationsAndMetrics(t *testing.T) {
	s := newServer(t, router.RateLimit{})

	res := s.do(t, call{method: http.MethodGet, path: "/notifications?page=1&limit=5", user: buyer})
	require.Equal(t, http.StatusOK, res.Code)
	page := decode[notify.Page](t, res.Body.Data)
	assert.Empty(t, page.Notifications)
	assert.Equal(t, 5, page.Limit)

	s.seedCart(t, 100, 1, 1)
	require.Equal(t, http.StatusCreated, s.do(t, call{method: http.MethodPost, path: "/orders", user: buyer}).Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `shop_test_checkout_total{outcome="success"} 1`)
	assert.Contains(t, w.Body.String(), `shop_test_http_requests_total{handler="/orders",status="201"} 1`)
}
