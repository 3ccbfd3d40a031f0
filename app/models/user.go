package models

import "time"

const (
	ROLE_USER       = "user"
	ROLE_ADMIN      = "admin"
)

// User is the buyer. Accounts are managed by the auth service; this service
// only reads the name and email for confirmations.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(150)" json:"name"`
	Email     string    `gorm:"uniqueIndex;type:varchar(200)" json:"email"`
	Role      string    `gorm:"type:varchar(50);default:'user'" json:"role"`
	Status    string    `gorm:"type:varchar(50);default:'active'" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string { return "users" }
