package store

import (
	"context"

	"shop_checkout/internal/model"

	"gorm.io/gorm"
)

// SaveNotification 写入通知并扇出到 recipients。
// 同一 event_id 已处理过时返回 created=false（消费幂等）。
func (s *Store) SaveNotification(ctx context.Context, n model.Notification, recipients []int64) (bool, error) {
	created := false
	err := s.WithTx(ctx, func(ctx context.Context) error {
		db := s.conn(ctx)
		if err := db.Create(&n).Error; err != nil {
			if isUniqueViolation(err) {
				return nil
			}
			return classify("create notification", err)
		}
		created = true
		if len(recipients) == 0 {
			return nil
		}
		rows := make([]model.UserNotification, 0, len(recipients))
		for _, uid := range recipients {
			rows = append(rows, model.UserNotification{UserID: uid, NotificationID: n.ID})
		}
		if err := db.Create(&rows).Error; err != nil {
			return classify("fan out notification", err)
		}
		return nil
	})
	return created, err
}

// ListUserNotifications 用户收件箱，新通知在前。
func (s *Store) ListUserNotifications(ctx context.Context, userID int64, page, limit int) ([]model.UserNotification, int64, error) {
	q := s.conn(ctx).Model(&model.UserNotification{}).
		Where("user_id = ?", userID).
		Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, classify("count notifications", err)
	}
	page, limit = NormalizePage(page, limit)
	var list []model.UserNotification
	err := q.Preload("Notification").
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, 0, classify("list notifications", err)
	}
	return list, total, nil
}
