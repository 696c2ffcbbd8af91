// Package cart 购物车维护。只校验库存，不预占；扣减发生在结算事务里。
package cart

import (
	"context"
	"errors"
	"fmt"

	"shop_checkout/internal/apperr"
	"shop_checkout/internal/model"
)

type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetProduct(ctx context.Context, id uint) (model.Product, error)
	GetCart(ctx context.Context, userID int64) (model.Cart, error)
	EnsureCart(ctx context.Context, userID int64) (model.Cart, error)
	ListLineItems(ctx context.Context, cartID uint) ([]model.CartItem, error)
	DeleteLineItems(ctx context.Context, cartID uint) error
	AddLineItem(ctx context.Context, cartID, productID uint, qty, price int64) (model.CartItem, error)
	SetLineItemQuantity(ctx context.Context, cartID, productID uint, qty int64) error
	RemoveLineItem(ctx context.Context, cartID, productID uint) error
}

// View 购物车及其按快照价计算的合计（分）。
type View struct {
	Cart  model.Cart `json:"cart"`
	Total int64      `json:"totalPrice"`
}

type Service struct {
	st Store
}

func NewService(st Store) *Service {
	return &Service{st: st}
}

// Get 用户还没有购物车时返回空视图而不是 404。
func (s *Service) Get(ctx context.Context, userID int64) (View, error) {
	c, err := s.st.GetCart(ctx, userID)
	if errors.Is(err, apperr.ReasonCartNotFound) {
		return View{Cart: model.Cart{UserID: userID, Items: []model.CartItem{}}}, nil
	}
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, c)
}

// AddItem 加购：数量累加，价格快照取首次加购时的商品价格。
func (s *Service) AddItem(ctx context.Context, userID int64, productID uint, qty int64) (View, error) {
	if qty < 1 {
		return View{}, apperr.Invalid("Quantity must be at least 1")
	}
	var c model.Cart
	err := s.st.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.st.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		c, err = s.st.EnsureCart(ctx, userID)
		if err != nil {
			return err
		}
		items, err := s.st.ListLineItems(ctx, c.ID)
		if err != nil {
			return err
		}
		want := qty
		for _, it := range items {
			if it.ProductID == productID {
				want += it.Quantity
			}
		}
		if p.Stock < want {
			return insufficient(p)
		}
		_, err = s.st.AddLineItem(ctx, c.ID, p.ID, qty, p.Price)
		return err
	})
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, c)
}

// UpdateItem 把某商品的数量设置为 qty。
func (s *Service) UpdateItem(ctx context.Context, userID int64, productID uint, qty int64) (View, error) {
	if qty < 1 {
		return View{}, apperr.Invalid("Quantity must be at least 1")
	}
	var c model.Cart
	err := s.st.WithTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.st.GetCart(ctx, userID)
		if err != nil {
			return err
		}
		p, err := s.st.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if p.Stock < qty {
			return insufficient(p)
		}
		return s.st.SetLineItemQuantity(ctx, c.ID, productID, qty)
	})
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, c)
}

func (s *Service) RemoveItem(ctx context.Context, userID int64, productID uint) (View, error) {
	c, err := s.st.GetCart(ctx, userID)
	if err != nil {
		return View{}, err
	}
	if err := s.st.RemoveLineItem(ctx, c.ID, productID); err != nil {
		return View{}, err
	}
	return s.view(ctx, c)
}

func (s *Service) Clear(ctx context.Context, userID int64) error {
	c, err := s.st.GetCart(ctx, userID)
	if err != nil {
		return err
	}
	return s.st.DeleteLineItems(ctx, c.ID)
}

func (s *Service) view(ctx context.Context, c model.Cart) (View, error) {
	items, err := s.st.ListLineItems(ctx, c.ID)
	if err != nil {
		return View{}, err
	}
	if items == nil {
		items = []model.CartItem{}
	}
	c.Items = items
	var total int64
	for _, it := range items {
		total += it.PriceAtAdd * it.Quantity
	}
	return View{Cart: c, Total: total}, nil
}

func insufficient(p model.Product) error {
	return apperr.InvalidState(apperr.ReasonInsufficientStock, fmt.Sprintf("Insufficient stock for %s", p.Title))
}
