package model

import "time"

// Notification 由订单事件生成的一条通知，EventID 唯一保证消费幂等。
type Notification struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	EventID        string `gorm:"size:64;uniqueIndex;not null" json:"-"`
	Type           string `gorm:"size:32;not null" json:"type"`
	Title          string `gorm:"size:128;not null" json:"title"`
	Message        string `gorm:"size:255;not null" json:"message"`
	OrderID        uint   `gorm:"index" json:"orderId"`
	SenderID       int64  `json:"senderId"`
	TargetAudience string `gorm:"size:16" json:"targetAudience"`
}

func (Notification) TableName() string { return "notifications" }

// UserNotification 通知扇出到具体用户的收件记录。
type UserNotification struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`

	UserID         int64        `gorm:"not null;uniqueIndex:idx_user_notifications_user_notification" json:"userId"`
	NotificationID uint         `gorm:"not null;uniqueIndex:idx_user_notifications_user_notification" json:"notificationId"`
	Notification   Notification `gorm:"foreignKey:NotificationID" json:"notification"`
}

func (UserNotification) TableName() string { return "user_notifications" }
