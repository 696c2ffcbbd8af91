package store

import (
	"context"

	"shop_checkout/internal/apperr"
	"shop_checkout/internal/model"

	"gorm.io/gorm"
)

// FindActiveCoupon 按规范化后的 code 查找启用中的券；多个卖家同码时取最早创建的一张。
func (s *Store) FindActiveCoupon(ctx context.Context, code string) (model.Coupon, error) {
	var c model.Coupon
	err := s.conn(ctx).
		Where("code = ? AND is_active = ?", code, true).
		Order("id ASC").
		First(&c).Error
	if err != nil {
		if isNotFound(err) {
			return model.Coupon{}, apperr.NotFound(apperr.ReasonCouponNotFound, "Coupon not found")
		}
		return model.Coupon{}, classify("find coupon", err)
	}
	return c, nil
}

func (s *Store) CountUsage(ctx context.Context, couponID uint) (int64, error) {
	var n int64
	if err := s.conn(ctx).Model(&model.CouponUsage{}).Where("coupon_id = ?", couponID).Count(&n).Error; err != nil {
		return 0, classify("count coupon usage", err)
	}
	return n, nil
}

func (s *Store) HasUsage(ctx context.Context, userID int64, couponID uint) (bool, error) {
	var n int64
	err := s.conn(ctx).Model(&model.CouponUsage{}).
		Where("user_id = ? AND coupon_id = ?", userID, couponID).
		Count(&n).Error
	if err != nil {
		return false, classify("check coupon usage", err)
	}
	return n > 0, nil
}

// RecordUsage 写入用券流水并占用一个名额：
//  1. (user_id, coupon_id) 唯一索引保证一人一券
//  2. used_count < usage_limit 条件更新保证总量不超发
//
// 任一步失败都返回 Conflict，由调用方重试（重试时前置校验会给出具体原因）。
func (s *Store) RecordUsage(ctx context.Context, usage model.CouponUsage) error {
	db := s.conn(ctx)
	if err := db.Create(&usage).Error; err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict(apperr.ReasonCouponAlreadyUsed, "Coupon already used", err)
		}
		return classify("record coupon usage", err)
	}
	res := db.Model(&model.Coupon{}).
		Where("id = ? AND (usage_limit IS NULL OR used_count < usage_limit)", usage.CouponID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return classify("claim coupon slot", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict(apperr.ReasonCouponLimitReached, "Coupon usage limit reached", nil)
	}
	return nil
}

// DeleteUsage 删除用券流水并释放名额（取消订单的补偿动作）。
func (s *Store) DeleteUsage(ctx context.Context, userID int64, couponID uint) error {
	db := s.conn(ctx)
	res := db.Where("user_id = ? AND coupon_id = ?", userID, couponID).Delete(&model.CouponUsage{})
	if res.Error != nil {
		return classify("delete coupon usage", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}
	err := db.Unscoped().Model(&model.Coupon{}).
		Where("id = ? AND used_count > 0", couponID).
		UpdateColumn("used_count", gorm.Expr("used_count - ?", res.RowsAffected)).Error
	if err != nil {
		return classify("release coupon slot", err)
	}
	return nil
}

// CouponFilter 后台查询条件；零值字段不参与过滤。
type CouponFilter struct {
	SellerID *int64
	Type     model.CouponType
	IsActive *bool
	Page     int
	Limit    int
}

func (s *Store) CreateCoupon(ctx context.Context, c model.Coupon) (model.Coupon, error) {
	if err := s.conn(ctx).Create(&c).Error; err != nil {
		if isUniqueViolation(err) {
			return model.Coupon{}, apperr.Conflict(apperr.ReasonDuplicate, "A coupon with this code already exists", err)
		}
		return model.Coupon{}, classify("create coupon", err)
	}
	return c, nil
}

func (s *Store) GetCoupon(ctx context.Context, id uint) (model.Coupon, error) {
	var c model.Coupon
	if err := s.conn(ctx).First(&c, id).Error; err != nil {
		if isNotFound(err) {
			return model.Coupon{}, apperr.NotFound(apperr.ReasonCouponNotFound, "Coupon not found")
		}
		return model.Coupon{}, classify("get coupon", err)
	}
	return c, nil
}

// ListCoupons 返回当前页数据和总数。
func (s *Store) ListCoupons(ctx context.Context, f CouponFilter) ([]model.Coupon, int64, error) {
	q := s.conn(ctx).Model(&model.Coupon{})
	if f.SellerID != nil {
		q = q.Where("seller_id = ?", *f.SellerID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, classify("count coupons", err)
	}
	page, limit := NormalizePage(f.Page, f.Limit)
	var list []model.Coupon
	if err := q.Order("id DESC").Offset((page - 1) * limit).Limit(limit).Find(&list).Error; err != nil {
		return nil, 0, classify("list coupons", err)
	}
	return list, total, nil
}

// SaveCoupon 整行更新（不含 used_count，名额只由用券流水维护）。
func (s *Store) SaveCoupon(ctx context.Context, c model.Coupon) (model.Coupon, error) {
	err := s.conn(ctx).Model(&c).
		Select("code", "type", "value", "min_amount", "max_discount", "usage_limit", "is_active", "expires_at").
		Updates(&c).Error
	if err != nil {
		if isUniqueViolation(err) {
			return model.Coupon{}, apperr.Conflict(apperr.ReasonDuplicate, "A coupon with this code already exists", err)
		}
		return model.Coupon{}, classify("update coupon", err)
	}
	return s.GetCoupon(ctx, c.ID)
}

func (s *Store) DeleteCoupon(ctx context.Context, id uint) error {
	res := s.conn(ctx).Delete(&model.Coupon{}, id)
	if res.Error != nil {
		return classify("delete coupon", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(apperr.ReasonCouponNotFound, "Coupon not found")
	}
	return nil
}

const (
	defaultPageSize = 15
	maxPageSize     = 100
)

// NormalizePage 分页参数兜底：page 从 1 开始，limit 默认 15、最大 100。
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}
