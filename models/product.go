package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	Name          string          `gorm:"not null" json:"name"`
	SKU           string          `gorm:"index" json:"sku"`
	Price         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	StockQuantity int             `gorm:"not null;default:0" json:"stockQuantity"`

	// IsServiceProduct marks items consumed during a service (color tubes,
	// treatments) rather than sold over the counter.
	IsServiceProduct bool             `gorm:"default:false" json:"isServiceProduct"`
	CommissionRate   *decimal.Decimal `gorm:"type:decimal(5,4)" json:"commissionRate,omitempty"`
	IsActive         bool             `gorm:"default:true" json:"isActive"`
}

func (p *Product) Type() ProductType {
	if p.IsServiceProduct {
		return ProductTypeServiceProduct
	}
	return ProductTypeRetail
}
