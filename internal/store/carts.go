package store

import (
	"context"
	"errors"

	"shop_checkout/internal/apperr"
	"shop_checkout/internal/model"

	"gorm.io/gorm/clause"
)

var errCartNotFound = apperr.NotFound(apperr.ReasonCartNotFound, "Cart not found")

func (s *Store) GetCart(ctx context.Context, userID int64) (model.Cart, error) {
	var c model.Cart
	if err := s.conn(ctx).Where("user_id = ?", userID).First(&c).Error; err != nil {
		if isNotFound(err) {
			return model.Cart{}, errCartNotFound
		}
		return model.Cart{}, classify("get cart", err)
	}
	return c, nil
}

// EnsureCart 懒创建购物车；并发首次加购时依赖 user_id 唯一索引去重。
func (s *Store) EnsureCart(ctx context.Context, userID int64) (model.Cart, error) {
	c, err := s.GetCart(ctx, userID)
	if err == nil || !errors.Is(err, apperr.ReasonCartNotFound) {
		return c, err
	}
	c = model.Cart{UserID: userID}
	res := s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&c)
	if res.Error != nil {
		return model.Cart{}, classify("create cart", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.GetCart(ctx, userID)
	}
	return c, nil
}

func (s *Store) ListLineItems(ctx context.Context, cartID uint) ([]model.CartItem, error) {
	var items []model.CartItem
	if err := s.conn(ctx).Where("cart_id = ?", cartID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, classify("list cart items", err)
	}
	return items, nil
}

func (s *Store) DeleteLineItems(ctx context.Context, cartID uint) error {
	if err := s.conn(ctx).Where("cart_id = ?", cartID).Delete(&model.CartItem{}).Error; err != nil {
		return classify("clear cart", err)
	}
	return nil
}

// AddLineItem 已在购物车中的商品累加数量，价格快照保持首次加购时的值。
func (s *Store) AddLineItem(ctx context.Context, cartID, productID uint, qty, price int64) (model.CartItem, error) {
	var item model.CartItem
	err := s.conn(ctx).Where("cart_id = ? AND product_id = ?", cartID, productID).First(&item).Error
	switch {
	case err == nil:
		item.Quantity += qty
		if err := s.conn(ctx).Model(&item).Update("quantity", item.Quantity).Error; err != nil {
			return model.CartItem{}, classify("update cart item", err)
		}
		return item, nil
	case isNotFound(err):
		item = model.CartItem{CartID: cartID, ProductID: productID, Quantity: qty, PriceAtAdd: price}
		if err := s.conn(ctx).Create(&item).Error; err != nil {
			return model.CartItem{}, classify("create cart item", err)
		}
		return item, nil
	default:
		return model.CartItem{}, classify("get cart item", err)
	}
}

func (s *Store) SetLineItemQuantity(ctx context.Context, cartID, productID uint, qty int64) error {
	res := s.conn(ctx).Model(&model.CartItem{}).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Update("quantity", qty)
	if res.Error != nil {
		return classify("update cart item", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(apperr.ReasonProductNotFound, "Product not found in cart")
	}
	return nil
}

func (s *Store) RemoveLineItem(ctx context.Context, cartID, productID uint) error {
	res := s.conn(ctx).Where("cart_id = ? AND product_id = ?", cartID, productID).Delete(&model.CartItem{})
	if res.Error != nil {
		return classify("remove cart item", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(apperr.ReasonProductNotFound, "Product not found in cart")
	}
	return nil
}
