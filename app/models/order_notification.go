package models

import "time"

const (
	NotificationTypeOrderConfirmation = "ORDER_CONFIRMATION"
	NotificationChannelEmail          = "EMAIL"

	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)

// OrderNotification is the delivery ledger: one row per (order, type, channel),
// updated on every send attempt.
type OrderNotification struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	OrderID       uint       `gorm:"not null;uniqueIndex:ux_order_notifications_order_type_channel,priority:1" json:"order_id"`
	UserID        uint       `gorm:"not null;index" json:"user_id"`
	Type          string     `gorm:"type:varchar(40);not null;uniqueIndex:ux_order_notifications_order_type_channel,priority:2" json:"type"`
	Channel       string     `gorm:"type:varchar(20);not null;uniqueIndex:ux_order_notifications_order_type_channel,priority:3" json:"channel"`
	Recipient     string     `gorm:"type:varchar(200);not null" json:"recipient"`
	Subject       string     `gorm:"type:varchar(255)" json:"subject"`
	Status        string     `gorm:"type:varchar(20);not null;default:'PENDING';index:ix_order_notifications_retry,priority:1" json:"status"`
	AttemptCount  int        `gorm:"not null;default:0;index:ix_order_notifications_retry,priority:2" json:"attempt_count"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	ErrorMessage  string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OrderNotification) TableName() string { return "order_notifications" }
