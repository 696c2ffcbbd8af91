package model

import (
	"time"

	"gorm.io/gorm"
)

// CouponType 优惠券类型。
type CouponType string

const (
	CouponPercentage CouponType = "percentage"
	CouponFixed      CouponType = "fixed"
)

func (t CouponType) IsValid() bool {
	return t == CouponPercentage || t == CouponFixed
}

// Coupon 优惠券定义。Code 在同一发放者（卖家）的未删除券中唯一，删除后可重建同码。
//   - percentage: Value 为百分比（1-100），MaxDiscount 可选封顶
//   - fixed: Value 为减免金额（分）
//
// UsedCount 与 coupon_usages 行数同步，用于条件占用名额（used_count < usage_limit）。
type Coupon struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	SellerID    int64      `gorm:"not null;uniqueIndex:idx_coupons_seller_code_live,where:deleted_at IS NULL" json:"sellerId"`
	Code        string     `gorm:"size:64;not null;uniqueIndex:idx_coupons_seller_code_live;index" json:"code"`
	Type        CouponType `gorm:"size:16;not null" json:"type"`
	Value       int64      `gorm:"not null" json:"value"`
	MinAmount   int64      `gorm:"not null;default:0" json:"minAmount"`
	MaxDiscount *int64     `json:"maxDiscount,omitempty"`
	UsageLimit  *int64     `json:"usageLimit,omitempty"`
	UsedCount   int64      `gorm:"not null;default:0" json:"usedCount"`
	IsActive    bool       `gorm:"not null" json:"isActive"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

func (Coupon) TableName() string { return "coupons" }

// Expired 判断优惠券在 now 时刻是否已过期；未设置过期时间视为长期有效。
func (c Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// CouponUsage 用券流水：(user_id, coupon_id) 唯一，保证一人一券。
// 取消订单时物理删除该行以释放名额，因此不使用软删除。
type CouponUsage struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	CouponID       uint  `gorm:"not null;uniqueIndex:idx_coupon_usages_user_coupon" json:"couponId"`
	UserID         int64 `gorm:"not null;uniqueIndex:idx_coupon_usages_user_coupon" json:"userId"`
	OrderID        uint  `gorm:"not null;index" json:"orderId"`
	DiscountAmount int64 `gorm:"not null" json:"discountAmount"`
}

func (CouponUsage) TableName() string { return "coupon_usages" }
