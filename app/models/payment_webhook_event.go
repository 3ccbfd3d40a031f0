package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	WebhookEventPaymentCaptured = "payment.captured"
	WebhookEventPaymentFailed   = "payment.failed"
)

// PaymentWebhookEvent stores every inbound gateway delivery. The unique
// (gateway, event_id) index is the deduplication boundary; rows are never deleted.
type PaymentWebhookEvent struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Gateway         string         `gorm:"type:varchar(20);not null;uniqueIndex:ux_payment_webhook_events_gateway_event,priority:1" json:"gateway"`
	EventID         string         `gorm:"type:varchar(191);not null;uniqueIndex:ux_payment_webhook_events_gateway_event,priority:2" json:"event_id"`
	EventType       string         `gorm:"type:varchar(64);not null;index" json:"event_type"`
	Payload         datatypes.JSON `gorm:"type:json;not null" json:"payload"`
	Processed       bool           `gorm:"not null;default:false;index:ix_payment_webhook_events_pending,priority:1" json:"processed"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
	ProcessingError string         `gorm:"type:text" json:"processing_error,omitempty"`
	ReceivedAt      time.Time      `gorm:"not null;index:ix_payment_webhook_events_pending,priority:2" json:"received_at"`
}

func (PaymentWebhookEvent) TableName() string { return "payment_webhook_events" }

// IsPaymentEvent reports whether the event type carries a business action.
func IsPaymentEvent(eventType string) bool {
	return eventType == WebhookEventPaymentCaptured || eventType == WebhookEventPaymentFailed
}
