package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shop_checkout/internal/apperr"
	"shop_checkout/internal/model"

	"github.com/google/uuid"
)

type Input struct {
	UserID     int64
	CouponCode string
}

// Checkout 把用户购物车转换为订单。
// 全部校验与写入在同一事务内完成，任一步失败整体回滚；
// Conflict / Internal 自动重试一次。提交后异步通知与缓存失效尽力而为。
func (s *Service) Checkout(ctx context.Context, in Input) (model.Order, error) {
	if s.guard != nil {
		unlock, acquired, err := s.guard.Lock(ctx, in.UserID)
		switch {
		case err != nil:
			// Redis 不可用时降级放行，正确性由数据库事务保证
			s.log.Warn("checkout guard unavailable", "user_id", in.UserID, "err", err)
		case !acquired:
			s.metrics.CheckoutOutcome("conflict")
			return model.Order{}, apperr.Conflict(apperr.ReasonCheckoutInProgress, "A checkout is already in progress", nil)
		default:
			defer func() {
				uctx, cancel := detached(ctx)
				defer cancel()
				unlock(uctx)
			}()
		}
	}

	var (
		order model.Order
		err   error
	)
	for attempt := 1; attempt <= maxCheckoutAttempts; attempt++ {
		order, err = s.checkoutOnce(ctx, in)
		if err == nil || !apperr.IsRetryable(err) || ctx.Err() != nil {
			break
		}
		if attempt < maxCheckoutAttempts {
			s.log.Warn("checkout retry", "user_id", in.UserID, "attempt", attempt, "err", err)
		}
	}
	if err != nil {
		s.metrics.CheckoutOutcome(outcomeOf(err))
		return model.Order{}, err
	}
	s.metrics.CheckoutOutcome("success")
	s.afterCheckout(ctx, order)
	return order, nil
}

func (s *Service) checkoutOnce(ctx context.Context, in Input) (model.Order, error) {
	var created model.Order
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		cart, err := s.carts.GetCart(ctx, in.UserID)
		if err != nil {
			return err
		}
		items, err := s.carts.ListLineItems(ctx, cart.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return apperr.InvalidState(apperr.ReasonEmptyCart, "Cart is empty")
		}

		// 1. 校验阶段：任何写入之前完成全部校验
		lines := make([]model.OrderItem, 0, len(items))
		for _, it := range items {
			p, err := s.products.GetProduct(ctx, it.ProductID)
			if err != nil {
				if errors.Is(err, apperr.ReasonProductNotFound) {
					return apperr.InvalidState(apperr.ReasonProductUnavailable,
						fmt.Sprintf("Product %d is no longer available", it.ProductID))
				}
				return err
			}
			if p.Stock < it.Quantity {
				return apperr.InvalidState(apperr.ReasonInsufficientStock,
					fmt.Sprintf("Insufficient stock for %s", p.Title))
			}
			lines = append(lines, model.OrderItem{
				ProductID:    p.ID,
				SellerID:     p.SellerID,
				ProductTitle: p.Title,
				Quantity:     it.Quantity,
				PriceAtOrder: it.PriceAtAdd,
			})
		}

		subtotal := Subtotal(items)
		var coupon *model.Coupon
		if code := NormalizeCode(in.CouponCode); code != "" {
			c, err := s.validateCoupon(ctx, in.UserID, code, subtotal)
			if err != nil {
				return err
			}
			coupon = &c
		}
		discount := Discount(subtotal, coupon)

		// 2. 写入阶段
		order := model.Order{
			OrderNo:  newOrderNo(),
			UserID:   in.UserID,
			Subtotal: subtotal,
			Discount: discount,
			Total:    subtotal - discount,
			Status:   model.OrderPending,
			Items:    lines,
		}
		if coupon != nil {
			order.CouponID = &coupon.ID
		}
		created, err = s.orders.CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		if coupon != nil {
			err := s.coupons.RecordUsage(ctx, model.CouponUsage{
				CouponID:       coupon.ID,
				UserID:         in.UserID,
				OrderID:        created.ID,
				DiscountAmount: discount,
			})
			if err != nil {
				return err
			}
		}
		for _, it := range items {
			if err := s.products.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		return s.carts.DeleteLineItems(ctx, cart.ID)
	})
	if err != nil {
		return model.Order{}, err
	}
	return created, nil
}

// validateCoupon 依次校验：存在且启用 / 未过期 / 本人未用过 / 未达总量上限 / 满足最低金额。
func (s *Service) validateCoupon(ctx context.Context, userID int64, code string, subtotal int64) (model.Coupon, error) {
	c, err := s.coupons.FindActiveCoupon(ctx, code)
	if err != nil {
		if errors.Is(err, apperr.ReasonCouponNotFound) {
			return model.Coupon{}, apperr.InvalidState(apperr.ReasonCouponInvalid, "Invalid coupon")
		}
		return model.Coupon{}, err
	}
	if c.Expired(s.clk.Now()) {
		return model.Coupon{}, apperr.InvalidState(apperr.ReasonCouponExpired, "Coupon expired")
	}
	used, err := s.coupons.HasUsage(ctx, userID, c.ID)
	if err != nil {
		return model.Coupon{}, err
	}
	if used {
		return model.Coupon{}, apperr.InvalidState(apperr.ReasonCouponAlreadyUsed, "Coupon already used")
	}
	if c.UsageLimit != nil {
		n, err := s.coupons.CountUsage(ctx, c.ID)
		if err != nil {
			return model.Coupon{}, err
		}
		if n >= *c.UsageLimit {
			return model.Coupon{}, apperr.InvalidState(apperr.ReasonCouponLimitReached, "Coupon usage limit reached")
		}
	}
	if subtotal < c.MinAmount {
		return model.Coupon{}, apperr.InvalidState(apperr.ReasonCouponBelowMinimum,
			fmt.Sprintf("Minimum amount %s required", FormatAmount(c.MinAmount)))
	}
	return c, nil
}

func (s *Service) afterCheckout(ctx context.Context, o model.Order) {
	ctx, cancel := detached(ctx)
	defer cancel()
	if err := s.events.NotifyOrderCreated(ctx, o.ID, o.UserID, o.Total); err != nil {
		s.log.Warn("notify order created failed", "order_id", o.ID, "user_id", o.UserID, "err", err)
	}
	if err := s.cache.InvalidateUserOrders(ctx, o.UserID); err != nil {
		s.log.Warn("invalidate user orders failed", "user_id", o.UserID, "err", err)
	}
}

func outcomeOf(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindConflict:
		return "conflict"
	case apperr.KindInternal:
		return "internal"
	case apperr.KindNotFound:
		return "not_found"
	default:
		return "rejected"
	}
}

// newOrderNo 对外展示的订单号；撞号会触发唯一索引冲突并随重试重新生成。
func newOrderNo() string {
	return "OD" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:20])
}
