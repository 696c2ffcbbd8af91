// Package notify 消费订单事件并生成站内通知。
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"shop_checkout/internal/checkout"
	"shop_checkout/internal/model"
	"shop_checkout/internal/queue"
	"shop_checkout/internal/store"
)

const (
	audienceSellers = "sellers"
	audienceOwner   = "owner"
)

type Store interface {
	ListOrderSellerIDs(ctx context.Context, orderID uint) ([]int64, error)
	SaveNotification(ctx context.Context, n model.Notification, recipients []int64) (bool, error)
	ListUserNotifications(ctx context.Context, userID int64, page, limit int) ([]model.UserNotification, int64, error)
}

// Page 收件箱分页结果。
type Page struct {
	Notifications []model.UserNotification `json:"notifications"`
	Total         int64                    `json:"total"`
	Page          int                      `json:"page"`
	Limit         int                      `json:"limit"`
}

type Service struct {
	st  Store
	log *slog.Logger
}

func NewService(st Store, log *slog.Logger) *Service {
	return &Service{st: st, log: log}
}

var _ queue.Handler = (*Service)(nil)

// Handle 按事件类型生成通知：
//   - order.created: 通知订单涉及的每个卖家
//   - order.updated: 通知下单用户
//
// 重复投递的事件（同 EventID）直接忽略。
func (s *Service) Handle(ctx context.Context, e queue.OrderEvent) error {
	var (
		n          model.Notification
		recipients []int64
	)
	switch e.Type {
	case queue.EventOrderCreated:
		sellers, err := s.st.ListOrderSellerIDs(ctx, e.OrderID)
		if err != nil {
			return err
		}
		n = model.Notification{
			Title:          "New Order Created",
			Message:        fmt.Sprintf("Order #%d created for a total of %s", e.OrderID, checkout.FormatAmount(e.Total)),
			TargetAudience: audienceSellers,
		}
		recipients = sellers
	case queue.EventOrderUpdated:
		n = model.Notification{
			Title:          "Order Status Updated",
			Message:        fmt.Sprintf("Order #%d is now %s", e.OrderID, e.Status),
			TargetAudience: audienceOwner,
		}
		recipients = []int64{e.UserID}
	default:
		s.log.Warn("notify skip unknown event", "event_id", e.EventID, "type", e.Type)
		return nil
	}
	n.EventID = e.EventID
	n.Type = string(e.Type)
	n.OrderID = e.OrderID
	n.SenderID = e.UserID

	created, err := s.st.SaveNotification(ctx, n, recipients)
	if err != nil {
		return err
	}
	if !created {
		s.log.Info("notify duplicate event", "event_id", e.EventID, "order_id", e.OrderID)
	}
	return nil
}

// ListForUser 用户收件箱，新通知在前。
func (s *Service) ListForUser(ctx context.Context, userID int64, page, limit int) (Page, error) {
	list, total, err := s.st.ListUserNotifications(ctx, userID, page, limit)
	if err != nil {
		return Page{}, err
	}
	if list == nil {
		list = []model.UserNotification{}
	}
	page, limit = store.NormalizePage(page, limit)
	return Page{Notifications: list, Total: total, Page: page, Limit: limit}, nil
}
