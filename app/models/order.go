package models

import "time"

const (
	OrderStatusCreated = "CREATED"
	OrderStatusPaid    = "PAID"
)

// Order is a purchase intent. It is created before any gateway interaction
// and only ever moves CREATED -> PAID; a PAID order keeps its amounts.
type Order struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	ItemID         string    `gorm:"type:varchar(64);not null" json:"item_id"`
	TotalAmount    int64     `gorm:"not null" json:"total_amount"`
	DiscountAmount int64     `gorm:"not null;default:0" json:"discount_amount"`
	PayableAmount  int64     `gorm:"not null" json:"payable_amount"`
	Currency       string    `gorm:"type:varchar(3);not null;default:'INR'" json:"currency"`
	Status         string    `gorm:"type:varchar(20);not null;default:'CREATED';index" json:"status"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) IsPaid() bool {
	return o.Status == OrderStatusPaid
}
