package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"shop_checkout/internal/apperr"
	"shop_checkout/internal/checkout"
	"shop_checkout/internal/middleware"
	"shop_checkout/internal/model"
	rediskey "shop_checkout/pkg/redis"

	"github.com/gin-gonic/gin"
)

const headerIdempotencyKey = "Idempotency-Key"

type orderHandlers struct {
	svc      *checkout.Service
	requests *rediskey.RequestStates
	log      *slog.Logger
}

// orderSummary 下单成功的返回体。
type orderSummary struct {
	OrderID  uint  `json:"orderId"`
	UserID   int64 `json:"userId"`
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

type orderView struct {
	OrderID   uint              `json:"orderId"`
	OrderNo   string            `json:"orderNo"`
	UserID    int64             `json:"userId"`
	CouponID  *uint             `json:"couponId"`
	Subtotal  int64             `json:"subtotal"`
	Discount  int64             `json:"discount"`
	Total     int64             `json:"total"`
	Status    model.OrderStatus `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// orderDetail 订单详情，附带明细。
type orderDetail struct {
	orderView
	Items []model.OrderItem `json:"items"`
}

func summaryOf(o model.Order) orderSummary {
	return orderSummary{OrderID: o.ID, UserID: o.UserID, Subtotal: o.Subtotal, Discount: o.Discount, Total: o.Total}
}

func viewOf(o model.Order) orderView {
	return orderView{
		OrderID:   o.ID,
		OrderNo:   o.OrderNo,
		UserID:    o.UserID,
		CouponID:  o.CouponID,
		Subtotal:  o.Subtotal,
		Discount:  o.Discount,
		Total:     o.Total,
		Status:    o.Status,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func detailOf(o model.Order) orderDetail {
	items := o.Items
	if items == nil {
		items = []model.OrderItem{}
	}
	return orderDetail{orderView: viewOf(o), Items: items}
}

func identity(c *gin.Context) model.Identity {
	who, _ := middleware.IdentityFrom(c)
	return who
}

// create 结算当前用户购物车。
// 带 Idempotency-Key 时：成功过的 key 直接重放同一订单，进行中的 key 返回 409。
func (h *orderHandlers) create(c *gin.Context) {
	var req struct {
		CouponCode string `json:"couponCode" binding:"omitempty,max=64"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		bindErr(c, err)
		return
	}
	who := identity(c)
	ctx := c.Request.Context()

	key := strings.TrimSpace(c.GetHeader(headerIdempotencyKey))
	if key != "" && h.requests != nil {
		st, started, err := h.requests.Begin(ctx, who.UserID, key)
		switch {
		case err != nil:
			// 幂等存储不可用时按普通请求处理
			h.log.Warn("idempotency begin failed", "user_id", who.UserID, "err", err)
			key = ""
		case !started:
			h.replay(c, who, st)
			return
		}
	} else {
		key = ""
	}

	order, err := h.svc.Checkout(ctx, checkout.Input{UserID: who.UserID, CouponCode: req.CouponCode})
	if key != "" {
		h.settle(ctx, who.UserID, key, order, err)
	}
	if err != nil {
		respondErr(c, err)
		return
	}
	success(c, http.StatusCreated, "Order created successfully", gin.H{"order": summaryOf(order)})
}

func (h *orderHandlers) replay(c *gin.Context, who model.Identity, st rediskey.RequestState) {
	switch st.Status {
	case rediskey.RequestSuccess:
		o, err := h.svc.GetOrder(c.Request.Context(), st.OrderID, who)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.Header("Idempotent-Replayed", "true")
		success(c, http.StatusCreated, "Order created successfully", gin.H{"order": summaryOf(o)})
	case rediskey.RequestFailed:
		code := st.Code
		if code == 0 {
			code = http.StatusBadRequest
		}
		c.Header("Idempotent-Replayed", "true")
		fail(c, code, st.Reason)
	default:
		fail(c, http.StatusConflict, "A request with this Idempotency-Key is still being processed")
	}
}

// settle 记录幂等键结果；可重试的失败释放 key，允许客户端用同一个 key 重试。
func (h *orderHandlers) settle(ctx context.Context, userID int64, key string, o model.Order, err error) {
	ctx = context.WithoutCancel(ctx)
	var serr error
	switch {
	case err == nil:
		serr = h.requests.Complete(ctx, userID, key, o.ID)
	case apperr.IsRetryable(err):
		serr = h.requests.Forget(ctx, userID, key)
	default:
		serr = h.requests.Fail(ctx, userID, key, statusOf(apperr.KindOf(err)), messageOf(err))
	}
	if serr != nil {
		h.log.Warn("idempotency settle failed", "user_id", userID, "err", serr)
	}
}

func (h *orderHandlers) list(c *gin.Context) {
	orders, err := h.svc.ListOrders(c.Request.Context(), identity(c).UserID)
	if err != nil {
		respondErr(c, err)
		return
	}
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, viewOf(o))
	}
	success(c, http.StatusOK, "", gin.H{"orders": views})
}

func (h *orderHandlers) get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	o, err := h.svc.GetOrder(c.Request.Context(), id, identity(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	success(c, http.StatusOK, "", gin.H{"order": detailOf(o)})
}

func (h *orderHandlers) updateStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status model.OrderStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindErr(c, err)
		return
	}
	o, err := h.svc.UpdateStatus(c.Request.Context(), id, req.Status, identity(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	success(c, http.StatusOK, "Order status updated successfully", gin.H{"order": detailOf(o)})
}

func (h *orderHandlers) cancel(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	o, err := h.svc.Cancel(c.Request.Context(), id, identity(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	success(c, http.StatusOK, "Order cancelled successfully", gin.H{"order": detailOf(o)})
}
