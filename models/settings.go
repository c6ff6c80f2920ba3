package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettingsID is the primary key of the single settings row.
const SettingsID uint = 1

// Settings is the salon-wide business configuration. It is loaded per
// operation and passed explicitly into the calculation functions.
type Settings struct {
	ID uint `gorm:"primaryKey" json:"-"`

	TaxEnabled bool            `gorm:"default:true" json:"taxEnabled"`
	TaxRate    decimal.Decimal `gorm:"type:decimal(5,4);default:0" json:"taxRate"`

	DefaultServiceCommissionRate        *decimal.Decimal `gorm:"type:decimal(5,4)" json:"defaultServiceCommissionRate,omitempty"`
	DefaultProductCommissionRate        *decimal.Decimal `gorm:"type:decimal(5,4)" json:"defaultProductCommissionRate,omitempty"`
	DefaultServiceProductCommissionRate *decimal.Decimal `gorm:"type:decimal(5,4)" json:"defaultServiceProductCommissionRate,omitempty"`

	InvoicePrefix        string `gorm:"default:'INV'" json:"invoicePrefix"`
	InvoiceNumberFormat  string `gorm:"default:'{PREFIX}-{YEAR}-{NUMBER}'" json:"invoiceNumberFormat"`
	InvoiceNumberPadding int    `gorm:"default:5" json:"invoiceNumberPadding"`
	InvoiceNextNumber    int64  `gorm:"not null;default:1" json:"invoiceNextNumber"`

	DeductStockOnFinalize    bool `gorm:"default:true" json:"deductStockOnFinalize"`
	AllowNegativeStock       bool `gorm:"default:false" json:"allowNegativeStock"`
	BlockOnInsufficientStock bool `gorm:"default:false" json:"blockOnInsufficientStock"`

	AutoApproveCommission bool            `gorm:"default:true" json:"autoApproveCommission"`
	RequireDiscountReason bool            `gorm:"default:false" json:"requireDiscountReason"`
	MaxDiscountPercent    decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"maxDiscountPercent"` // 0 = no limit
	AllowOverpayment      bool            `gorm:"default:true" json:"allowOverpayment"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultSettings is what a fresh installation starts with.
func DefaultSettings() Settings {
	service := decimal.RequireFromString("0.30")
	product := decimal.RequireFromString("0.10")
	serviceProduct := decimal.RequireFromString("0.05")
	return Settings{
		ID:                                  SettingsID,
		TaxEnabled:                          true,
		TaxRate:                             decimal.RequireFromString("0.15"),
		DefaultServiceCommissionRate:        &service,
		DefaultProductCommissionRate:        &product,
		DefaultServiceProductCommissionRate: &serviceProduct,
		InvoicePrefix:                       "INV",
		InvoiceNumberFormat:                 "{PREFIX}-{YEAR}-{NUMBER}",
		InvoiceNumberPadding:                5,
		InvoiceNextNumber:                   1,
		DeductStockOnFinalize:               true,
		AutoApproveCommission:               true,
		AllowOverpayment:                    true,
	}
}
