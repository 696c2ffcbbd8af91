package checkout

import (
	"context"
	"fmt"

	"shop_checkout/internal/apperr"
	"shop_checkout/internal/model"
)

// GetOrder 订单详情（含明细），仅属主或特权角色可见。
func (s *Service) GetOrder(ctx context.Context, orderID uint, who model.Identity) (model.Order, error) {
	o, ver, hit, cerr := s.cache.GetOrder(ctx, orderID)
	if cerr != nil {
		s.log.Warn("order cache get failed", "order_id", orderID, "err", cerr)
	}
	if !hit {
		var err error
		o, err = s.orders.GetOrder(ctx, orderID)
		if err != nil {
			return model.Order{}, err
		}
		// 缓存读失败时拿不到可信的版本号，不回填
		if cerr == nil {
			if _, err := s.cache.SetOrder(ctx, o, ver); err != nil {
				s.log.Warn("order cache set failed", "order_id", orderID, "err", err)
			}
		}
	}
	if !who.CanAccessOrder(o) {
		return model.Order{}, apperr.Forbidden(apperr.ReasonNotOwner, "You are not allowed to view this order")
	}
	return o, nil
}

// ListOrders 用户订单列表，新单在前。缓存未命中时用 singleflight 合并并发回源。
func (s *Service) ListOrders(ctx context.Context, userID int64) ([]model.Order, error) {
	orders, ver, hit, cerr := s.cache.GetUserOrders(ctx, userID)
	if cerr != nil {
		s.log.Warn("orders cache get failed", "user_id", userID, "err", cerr)
	}
	if hit {
		return orders, nil
	}

	// 合并的回源不能跟着第一个调用方的请求一起被取消
	sfCtx := context.WithoutCancel(ctx)
	v, err, _ := s.sf.Do(fmt.Sprintf("orders:%d:%d", userID, ver), func() (any, error) {
		list, err := s.orders.ListOrdersByUser(sfCtx, userID)
		if err != nil {
			return nil, err
		}
		if cerr == nil {
			if _, err := s.cache.SetUserOrders(sfCtx, userID, list, ver); err != nil {
				s.log.Warn("orders cache set failed", "user_id", userID, "err", err)
			}
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	list := v.([]model.Order)
	if list == nil {
		list = []model.Order{}
	}
	return list, nil
}
