package store

import (
	"context"
	"fmt"

	"shop_checkout/internal/apperr"
	"shop_checkout/internal/model"

	"gorm.io/gorm"
)

func (s *Store) CreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	if err := s.conn(ctx).Create(&p).Error; err != nil {
		return model.Product{}, classify("create product", err)
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]model.Product, error) {
	var list []model.Product
	if err := s.conn(ctx).Order("id ASC").Find(&list).Error; err != nil {
		return nil, classify("list products", err)
	}
	return list, nil
}

// GetProduct 软删除的商品视为不存在。
func (s *Store) GetProduct(ctx context.Context, id uint) (model.Product, error) {
	var p model.Product
	if err := s.conn(ctx).First(&p, id).Error; err != nil {
		if isNotFound(err) {
			return model.Product{}, apperr.NotFound(apperr.ReasonProductNotFound, "Product not found")
		}
		return model.Product{}, classify("get product", err)
	}
	return p, nil
}

// DecrementStock 条件扣减：只有 stock >= qty 时才会更新。
// 影响 0 行说明读到的库存已被并发事务改掉，返回可重试的 Conflict。
func (s *Store) DecrementStock(ctx context.Context, id uint, qty int64) error {
	res := s.conn(ctx).Model(&model.Product{}).
		Where("id = ? AND stock >= ?", id, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return classify("decrement stock", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict(apperr.ReasonWriteConflict, fmt.Sprintf("stock of product %d changed", id), nil)
	}
	return nil
}

// IncrementStock 回补库存，已下架（软删除）的商品同样回补。
func (s *Store) IncrementStock(ctx context.Context, id uint, qty int64) error {
	res := s.conn(ctx).Unscoped().Model(&model.Product{}).
		Where("id = ?", id).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return classify("increment stock", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(apperr.ReasonProductNotFound, fmt.Sprintf("product %d not found", id))
	}
	return nil
}
