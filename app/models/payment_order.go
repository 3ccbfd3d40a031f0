package models

import "time"

const (
	GatewayRazorpay = "razorpay"

	PaymentOrderStatusCreated = "CREATED"
	PaymentOrderStatusPaid    = "PAID"
)

// PaymentOrder maps an internal order to the gateway's own order id. The
// (gateway, gateway_order_id) pair is how webhooks find their way back to an Order.
type PaymentOrder struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrderID        uint      `gorm:"not null;uniqueIndex:ux_payment_orders_order" json:"order_id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	Gateway        string    `gorm:"type:varchar(20);not null;uniqueIndex:ux_payment_orders_gateway_order,priority:1" json:"gateway"`
	GatewayOrderID string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_payment_orders_gateway_order,priority:2" json:"gateway_order_id"`
	Amount         int64     `gorm:"not null" json:"amount"`
	Currency       string    `gorm:"type:varchar(3);not null" json:"currency"`
	Status         string    `gorm:"type:varchar(20);not null;default:'CREATED'" json:"status"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PaymentOrder) TableName() string { return "payment_orders" }
