package router

import (
	"net/http"
	"strconv"
	"time"

	"shop_checkout/internal/coupon"
	"shop_checkout/internal/model"
	"shop_checkout/internal/store"

	"github.com/gin-gonic/gin"
)

type couponHandlers struct {
	svc *coupon.Service
}

type createCouponReq struct {
	Code        string           `json:"code" binding:"required,couponcode"`
	Type        model.CouponType `json:"type" binding:"required,coupontype"`
	Value       int64            `json:"value" binding:"required,gt=0"`
	MinAmount   int64            `json:"minAmount" binding:"gte=0"`
	MaxDiscount *int64           `json:"maxDiscount" binding:"omitempty,gte=0"`
	UsageLimit  *int64           `json:"usageLimit" binding:"omitempty,min=1"`
	IsActive    *bool            `json:"isActive"`
	ExpiresAt   *time.Time       `json:"expiresAt"`
}

type updateCouponReq struct {
	Code        *string           `json:"code" binding:"omitempty,couponcode"`
	Type        *model.CouponType `json:"type" binding:"omitempty,coupontype"`
	Value       *int64            `json:"value" binding:"omitempty,gt=0"`
	MinAmount   *int64            `json:"minAmount" binding:"omitempty,gte=0"`
	MaxDiscount *int64            `json:"maxDiscount" binding:"omitempty,gte=0"`
	UsageLimit  *int64            `json:"usageLimit" binding:"omitempty,min=1"`
	IsActive    *bool             `json:"isActive"`
	ExpiresAt   *time.Time        `json:"expiresAt"`
}

func (h *couponHandlers) create(c *gin.Context) {
	var req createCouponReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindErr(c, err)
		return
	}
	cp, err := h.svc.Create(c.Request.Context(), identity(c), coupon.Input{
		Code:        req.Code,
		Type:        req.Type,
		Value:       req.Value,
		MinAmount:   req.MinAmount,
		MaxDiscount: req.MaxDiscount,
		UsageLimit:  req.UsageLimit,
		IsActive:    req.IsActive,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	success(c, http.StatusCreated, "Coupon created successfully", gin.H{"coupon": cp})
}

func (h *couponHandlers) list(c *gin.Context) {
	page, err := h.svc.List(c.Request.Context(), identity(c), filterOf(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	success(c, http.StatusOK, "", page)
}

func (h *couponHandlers) mine(c *gin.Context) {
	page, err := h.svc.ListMine(c.Request.Context(), identity(c), filterOf(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	success(c, http.StatusOK, "", page)
}

func (h *couponHandlers) get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	cp, err := h.svc.Get(c.Request.Context(), identity(c), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	success(c, http.StatusOK, "", gin.H{"coupon": cp})
}

func (h *couponHandlers) update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req updateCouponReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindErr(c, err)
		return
	}
	cp, err := h.svc.Update(c.Request.Context(), identity(c), id, coupon.Patch{
		Code:        req.Code,
		Type:        req.Type,
		Value:       req.Value,
		MinAmount:   req.MinAmount,
		MaxDiscount: req.MaxDiscount,
		UsageLimit:  req.UsageLimit,
		IsActive:    req.IsActive,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	success(c, http.StatusOK, "Coupon updated successfully", gin.H{"coupon": cp})
}

func (h *couponHandlers) remove(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), identity(c), id); err != nil {
		respondErr(c, err)
		return
	}
	success(c, http.StatusOK, "Coupon deleted successfully", nil)
}

// filterOf 解析 ?type=&isActive=&page=&limit=；非法的 isActive 忽略。
func filterOf(c *gin.Context) store.CouponFilter {
	f := store.CouponFilter{
		Type:  model.CouponType(c.Query("type")),
		Page:  queryInt(c, "page"),
		Limit: queryInt(c, "limit"),
	}
	if v, err := strconv.ParseBool(c.Query("isActive")); err == nil {
		f.IsActive = &v
	}
	return f
}
