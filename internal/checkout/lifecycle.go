package checkout

import (
	"context"
	"errors"
	"fmt"

	"shop_checkout/internal/apperr"
	"shop_checkout/internal/model"
)

// UpdateStatus 特权角色推进订单履约状态（pending -> paid -> shipped -> delivered）。
// 终态订单不可再改；取消走 Cancel 以便执行补偿。
func (s *Service) UpdateStatus(ctx context.Context, orderID uint, next model.OrderStatus, who model.Identity) (model.Order, error) {
	if !who.IsAdmin() {
		return model.Order{}, apperr.Forbidden(apperr.ReasonRoleRequired, "Only administrators can update order status")
	}
	if !next.IsValid() || next == model.OrderCancelled {
		return model.Order{}, apperr.InvalidState(apperr.ReasonInvalidStatus,
			"Status must be one of pending, paid, shipped, delivered")
	}
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if o.Status.IsTerminal() {
		return model.Order{}, apperr.InvalidState(apperr.ReasonIllegalTransition,
			fmt.Sprintf("Order is %s and can no longer change status", o.Status))
	}
	if !o.Status.CanAdvanceTo(next) {
		return model.Order{}, apperr.InvalidState(apperr.ReasonIllegalTransition,
			fmt.Sprintf("Cannot change order status from %s to %s", o.Status, next))
	}
	if err := s.orders.UpdateOrderStatus(ctx, o.ID, o.Status, next); err != nil {
		return model.Order{}, err
	}
	o.Status = next
	s.metrics.OrderTransition(string(next))
	s.afterStatusChange(ctx, o)
	return o, nil
}

// Cancel 取消待支付订单，并在同一事务内补偿：回补库存、删除用券流水、状态置为 cancelled。
func (s *Service) Cancel(ctx context.Context, orderID uint, who model.Identity) (model.Order, error) {
	var cancelled model.Order
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !who.CanAccessOrder(o) {
			return apperr.Forbidden(apperr.ReasonNotOwner, "You are not allowed to cancel this order")
		}
		switch o.Status {
		case model.OrderPending:
		case model.OrderCancelled:
			return apperr.InvalidState(apperr.ReasonAlreadyCancelled, "Order is already cancelled")
		default:
			return apperr.InvalidState(apperr.ReasonNotPending,
				fmt.Sprintf("Only pending orders can be cancelled, order is %s", o.Status))
		}

		for _, it := range o.Items {
			err := s.products.IncrementStock(ctx, it.ProductID, it.Quantity)
			if errors.Is(err, apperr.ReasonProductNotFound) {
				// 商品行已被物理删除，无处回补
				s.log.Warn("restock skipped, product gone", "order_id", o.ID, "product_id", it.ProductID)
				continue
			}
			if err != nil {
				return err
			}
		}
		if o.CouponID != nil {
			if err := s.coupons.DeleteUsage(ctx, o.UserID, *o.CouponID); err != nil {
				return err
			}
		}
		if err := s.orders.UpdateOrderStatus(ctx, o.ID, model.OrderPending, model.OrderCancelled); err != nil {
			return err
		}
		o.Status = model.OrderCancelled
		cancelled = o
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	s.metrics.OrderTransition(string(model.OrderCancelled))
	s.afterStatusChange(ctx, cancelled)
	return cancelled, nil
}

func (s *Service) afterStatusChange(ctx context.Context, o model.Order) {
	ctx, cancel := detached(ctx)
	defer cancel()
	if err := s.events.NotifyOrderUpdated(ctx, o.ID, o.UserID, o.Status); err != nil {
		s.log.Warn("notify order updated failed", "order_id", o.ID, "status", o.Status, "err", err)
	}
	if err := s.cache.InvalidateOrder(ctx, o.ID); err != nil {
		s.log.Warn("invalidate order failed", "order_id", o.ID, "err", err)
	}
	if err := s.cache.InvalidateUserOrders(ctx, o.UserID); err != nil {
		s.log.Warn("invalidate user orders failed", "user_id", o.UserID, "err", err)
	}
}
