package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Service struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Duration    int             `json:"duration"` // in minutes
	Category    string          `gorm:"default:'General'" json:"category"`

	// CommissionRate overrides the stylist and salon defaults when set.
	CommissionRate *decimal.Decimal `gorm:"type:decimal(5,4)" json:"commissionRate,omitempty"`
	IsActive       bool             `gorm:"default:true" json:"isActive"`
}
