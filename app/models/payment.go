package models

import "time"

const (
	PaymentStatusCaptured = "captured"
)

// Payment is written once per captured gateway payment and never updated.
type Payment struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	OrderID          uint      `gorm:"not null;index" json:"order_id"`
	PaymentOrderID   uint      `gorm:"not null;index" json:"payment_order_id"`
	Gateway          string    `gorm:"type:varchar(20);not null;uniqueIndex:ux_payments_gateway_payment,priority:1" json:"gateway"`
	GatewayPaymentID string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_payments_gateway_payment,priority:2" json:"gateway_payment_id"`
	Amount           int64     `gorm:"not null" json:"amount"`
	Currency         string    `gorm:"type:varchar(3);not null" json:"currency"`
	Method           string    `gorm:"type:varchar(32)" json:"method"`
	Status           string    `gorm:"type:varchar(20);not null" json:"status"`
	Captured         bool      `gorm:"not null;default:false" json:"captured"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Payment) TableName() string { return "payments" }
