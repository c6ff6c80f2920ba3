package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Customer struct {
	ID uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`

	Name          string `gorm:"not null" json:"name"`
	Phone         string `gorm:"not null;index" json:"phone"`
	Email         string `json:"email"`
	Notes         string `json:"notes"`
	LoyaltyPoints int    `gorm:"default:0" json:"loyaltyPoints"`

	TotalVisits int             `gorm:"default:0" json:"totalVisits"`
	TotalSpent  decimal.Decimal `gorm:"type:decimal(10,2);default:0.0" json:"totalSpent"`
	LastVisit   *time.Time      `json:"lastVisit,omitempty"`
	IsActive    bool            `gorm:"default:true" json:"isActive"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
