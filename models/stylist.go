package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Stylist struct {
	ID    uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	Name  string    `gorm:"not null" json:"name"`
	Email string    `json:"email"`
	Phone string    `json:"phone"`
	// CommissionRate is the stylist's default for services. Products never use it.
	CommissionRate *decimal.Decimal `gorm:"type:decimal(5,4)" json:"commissionRate,omitempty"`
	IsActive       bool             `gorm:"default:true" json:"isActive"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
