package store

import (
	"context"
	"fmt"

	"shop_checkout/internal/apperr"
	"shop_checkout/internal/model"

	"gorm.io/gorm"
)

// CreateOrder 写入订单及全部明细（gorm 关联一并插入），返回带主键的订单。
func (s *Store) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	if err := s.conn(ctx).Create(&o).Error; err != nil {
		return model.Order{}, classify("create order", err)
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id uint) (model.Order, error) {
	var o model.Order
	err := s.conn(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&o, id).Error
	if err != nil {
		if isNotFound(err) {
			return model.Order{}, apperr.NotFound(apperr.ReasonOrderNotFound, "Order not found")
		}
		return model.Order{}, classify("get order", err)
	}
	return o, nil
}

// ListOrdersByUser 按创建时间倒序（新单在前）。
func (s *Store) ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	var list []model.Order
	err := s.conn(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&list).Error
	if err != nil {
		return nil, classify("list orders", err)
	}
	return list, nil
}

// UpdateOrderStatus 以读到的状态为条件更新（CAS）；状态已被并发修改时返回 Conflict。
func (s *Store) UpdateOrderStatus(ctx context.Context, id uint, from, to model.OrderStatus) error {
	res := s.conn(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return classify("update order status", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict(apperr.ReasonWriteConflict, fmt.Sprintf("order %d is no longer %s", id, from), nil)
	}
	return nil
}

// ListOrderSellerIDs 订单明细涉及的卖家（去重），用于通知扇出。
func (s *Store) ListOrderSellerIDs(ctx context.Context, orderID uint) ([]int64, error) {
	var ids []int64
	err := s.conn(ctx).Model(&model.OrderItem{}).
		Where("order_id = ?", orderID).
		Distinct().
		Order("seller_id ASC").
		Pluck("seller_id", &ids).Error
	if err != nil {
		return nil, classify("list order sellers", err)
	}
	return ids, nil
}
