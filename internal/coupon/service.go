// Package coupon 优惠券后台管理：卖家发券、管理员查看全部。
// 结算时对券的校验在 checkout 包内完成，这里只维护定义。
package coupon

import (
	"context"
	"time"

	"shop_checkout/internal/apperr"
	"shop_checkout/internal/checkout"
	"shop_checkout/internal/model"
	"shop_checkout/internal/store"
)

type Store interface {
	CreateCoupon(ctx context.Context, c model.Coupon) (model.Coupon, error)
	GetCoupon(ctx context.Context, id uint) (model.Coupon, error)
	ListCoupons(ctx context.Context, f store.CouponFilter) ([]model.Coupon, int64, error)
	SaveCoupon(ctx context.Context, c model.Coupon) (model.Coupon, error)
	DeleteCoupon(ctx context.Context, id uint) error
}

// Input 创建券的参数。IsActive 为空时默认启用。
type Input struct {
	Code        string
	Type        model.CouponType
	Value       int64
	MinAmount   int64
	MaxDiscount *int64
	UsageLimit  *int64
	IsActive    *bool
	ExpiresAt   *time.Time
}

// Patch 部分更新，nil 字段保持原值。
type Patch struct {
	Code        *string
	Type        *model.CouponType
	Value       *int64
	MinAmount   *int64
	MaxDiscount *int64
	UsageLimit  *int64
	IsActive    *bool
	ExpiresAt   *time.Time
}

// Page 分页结果。
type Page struct {
	Coupons []model.Coupon `json:"coupons"`
	Total   int64          `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
}

type Service struct {
	st Store
}

func NewService(st Store) *Service {
	return &Service{st: st}
}

func (s *Service) Create(ctx context.Context, who model.Identity, in Input) (model.Coupon, error) {
	if who.Role != model.RoleSeller && !who.IsAdmin() {
		return model.Coupon{}, apperr.Forbidden(apperr.ReasonRoleRequired, "Only sellers can create coupons")
	}
	c := model.Coupon{
		SellerID:    who.UserID,
		Code:        checkout.NormalizeCode(in.Code),
		Type:        in.Type,
		Value:       in.Value,
		MinAmount:   in.MinAmount,
		MaxDiscount: in.MaxDiscount,
		UsageLimit:  in.UsageLimit,
		IsActive:    true,
		ExpiresAt:   in.ExpiresAt,
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	if err := validate(c); err != nil {
		return model.Coupon{}, err
	}
	return s.st.CreateCoupon(ctx, c)
}

func (s *Service) Get(ctx context.Context, who model.Identity, id uint) (model.Coupon, error) {
	c, err := s.st.GetCoupon(ctx, id)
	if err != nil {
		return model.Coupon{}, err
	}
	if !canManage(who, c) {
		return model.Coupon{}, apperr.Forbidden(apperr.ReasonNotOwner, "You are not allowed to access this coupon")
	}
	return c, nil
}

func (s *Service) Update(ctx context.Context, who model.Identity, id uint, p Patch) (model.Coupon, error) {
	c, err := s.Get(ctx, who, id)
	if err != nil {
		return model.Coupon{}, err
	}
	if p.Code != nil {
		c.Code = checkout.NormalizeCode(*p.Code)
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Value != nil {
		c.Value = *p.Value
	}
	if p.MinAmount != nil {
		c.MinAmount = *p.MinAmount
	}
	if p.MaxDiscount != nil {
		c.MaxDiscount = p.MaxDiscount
	}
	if p.UsageLimit != nil {
		c.UsageLimit = p.UsageLimit
	}
	if p.IsActive != nil {
		c.IsActive = *p.IsActive
	}
	if p.ExpiresAt != nil {
		c.ExpiresAt = p.ExpiresAt
	}
	if err := validate(c); err != nil {
		return model.Coupon{}, err
	}
	return s.st.SaveCoupon(ctx, c)
}

// Delete 软删除；已下单的用券流水保留。
func (s *Service) Delete(ctx context.Context, who model.Identity, id uint) error {
	if _, err := s.Get(ctx, who, id); err != nil {
		return err
	}
	return s.st.DeleteCoupon(ctx, id)
}

// List 管理员查看全部券。
func (s *Service) List(ctx context.Context, who model.Identity, f store.CouponFilter) (Page, error) {
	if !who.IsAdmin() {
		return Page{}, apperr.Forbidden(apperr.ReasonRoleRequired, "Only administrators can list all coupons")
	}
	f.SellerID = nil
	return s.list(ctx, f)
}

// ListMine 当前调用方发放的券。
func (s *Service) ListMine(ctx context.Context, who model.Identity, f store.CouponFilter) (Page, error) {
	f.SellerID = &who.UserID
	return s.list(ctx, f)
}

func (s *Service) list(ctx context.Context, f store.CouponFilter) (Page, error) {
	list, total, err := s.st.ListCoupons(ctx, f)
	if err != nil {
		return Page{}, err
	}
	if list == nil {
		list = []model.Coupon{}
	}
	page, limit := store.NormalizePage(f.Page, f.Limit)
	return Page{Coupons: list, Total: total, Page: page, Limit: limit}, nil
}

func canManage(who model.Identity, c model.Coupon) bool {
	return who.IsAdmin() || c.SellerID == who.UserID
}

func validate(c model.Coupon) error {
	switch {
	case c.Code == "":
		return apperr.Invalid("Coupon code is required")
	case !c.Type.IsValid():
		return apperr.Invalid("Coupon type must be percentage or fixed")
	case c.Value <= 0:
		return apperr.Invalid("Coupon value must be greater than 0")
	case c.Type == model.CouponPercentage && c.Value > 100:
		return apperr.Invalid("Percentage discount cannot exceed 100")
	case c.MinAmount < 0:
		return apperr.Invalid("Minimum amount cannot be negative")
	case c.MaxDiscount != nil && *c.MaxDiscount < 0:
		return apperr.Invalid("Maximum discount cannot be negative")
	case c.UsageLimit != nil && *c.UsageLimit < 1:
		return apperr.Invalid("Usage limit must be at least 1")
	}
	return nil
}
