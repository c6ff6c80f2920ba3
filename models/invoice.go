package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusFinalized InvoiceStatus = "finalized"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
	InvoiceStatusVoid      InvoiceStatus = "void"
)

// IsTerminal reports whether no further lifecycle transition is allowed.
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusCancelled || s == InvoiceStatusVoid
}

type PaymentStatus string

const (
	PaymentStatusUnpaid     PaymentStatus = "unpaid"
	PaymentStatusPartial    PaymentStatus = "partial"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusWrittenOff PaymentStatus = "written_off"
)

type DiscountType string

const (
	DiscountPercentage    DiscountType = "percentage"
	DiscountFixed         DiscountType = "fixed"
	DiscountLoyaltyPoints DiscountType = "loyalty_points"
	DiscountPromoCode     DiscountType = "promo_code"
	DiscountManual        DiscountType = "manual"
)

type ProductType string

const (
	ProductTypeRetail         ProductType = "retail"
	ProductTypeServiceProduct ProductType = "service_product"
)

// Discount is stored inline on the invoice row with a discount_ column prefix.
type Discount struct {
	Type   DiscountType    `gorm:"type:varchar(20)" json:"type,omitempty"`
	Value  decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"value"`
	Amount decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"amount"`
	Reason string          `json:"reason,omitempty"`
}

type Invoice struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	InvoiceNumber   *string    `gorm:"uniqueIndex" json:"invoiceNumber,omitempty"`
	BookingID       *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_invoices_live_booking,where:status <> 'cancelled' AND status <> 'void'" json:"bookingId,omitempty"`
	CustomerID      uuid.UUID  `gorm:"type:uuid;index;not null" json:"customerId"`
	StylistID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"stylistId"`
	CreatedByUserID uuid.UUID  `gorm:"type:uuid;index" json:"createdBy"`

	ServicesSubtotal decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"servicesSubtotal"`
	ProductsSubtotal decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"productsSubtotal"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	Discount         Discount        `gorm:"embedded;embeddedPrefix:discount_" json:"discount"`
	TaxRate          decimal.Decimal `gorm:"type:decimal(5,4);default:0" json:"taxRate"`
	TaxAmount        decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"taxAmount"`
	Total            decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total"`

	PaymentStatus PaymentStatus   `gorm:"type:varchar(20);default:'unpaid';index" json:"paymentStatus"`
	AmountPaid    decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"amountPaid"`
	AmountDue     decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"amountDue"`

	CommissionTotal    decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"commissionTotal"`
	CommissionPaid     bool            `gorm:"default:false" json:"commissionPaid"`
	CommissionPaidDate *time.Time      `json:"commissionPaidDate,omitempty"`

	Status       InvoiceStatus `gorm:"type:varchar(20);default:'draft';index" json:"status"`
	ServiceDate  time.Time     `gorm:"index" json:"serviceDate"`
	InvoiceDate  time.Time     `gorm:"default:CURRENT_TIMESTAMP" json:"invoiceDate"`
	FinalizedAt  *time.Time    `json:"finalizedAt,omitempty"`
	SentAt       *time.Time    `json:"sentAt,omitempty"`
	CancelledAt  *time.Time    `json:"cancelledAt,omitempty"`
	VoidedAt     *time.Time    `json:"voidedAt,omitempty"`
	CancelReason string        `json:"cancelReason,omitempty"`
	Notes        string        `json:"notes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Services   []InvoiceServiceLine `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"services"`
	Products   []InvoiceProductLine `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"products"`
	Payments   []InvoicePayment     `gorm:"foreignKey:InvoiceID" json:"payments"`
	Commission *InvoiceCommission   `gorm:"foreignKey:InvoiceID" json:"commission,omitempty"`

	// Warnings carries non-fatal notes from the last operation (skipped stock lines).
	Warnings []string `gorm:"-" json:"warnings,omitempty"`
}

func (i *Invoice) IsDraft() bool {
	return i.Status == InvoiceStatusDraft
}

// PendingStockLines returns retail lines whose stock has not been decremented yet.
func (i *Invoice) PendingStockLines() []*InvoiceProductLine {
	var pending []*InvoiceProductLine
	for idx := range i.Products {
		line := &i.Products[idx]
		if line.ProductType == ProductTypeRetail && !line.DeductedFromStock {
			pending = append(pending, line)
		}
	}
	return pending
}

type InvoiceServiceLine struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	InvoiceID        uuid.UUID       `gorm:"type:uuid;index;not null" json:"invoiceId"`
	ServiceID        uuid.UUID       `gorm:"type:uuid;index;not null" json:"serviceId"`
	ServiceName      string          `gorm:"not null" json:"serviceName"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unitPrice"`
	Quantity         int             `gorm:"default:1" json:"quantity"`
	Discount         decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"discount"`
	LineTotal        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"lineTotal"`
	CommissionRate   decimal.Decimal `gorm:"type:decimal(5,4);not null" json:"commissionRate"`
	CommissionAmount decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"commissionAmount"`
	CreatedAt        time.Time       `json:"createdAt"`
}

type InvoiceProductLine struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	InvoiceID         uuid.UUID       `gorm:"type:uuid;index;not null" json:"invoiceId"`
	ProductID         uuid.UUID       `gorm:"type:uuid;index;not null" json:"productId"`
	ProductName       string          `gorm:"not null" json:"productName"`
	ProductType       ProductType     `gorm:"type:varchar(20);not null" json:"productType"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unitPrice"`
	Quantity          int             `gorm:"default:1" json:"quantity"`
	Discount          decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"discount"`
	LineTotal         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"lineTotal"`
	CommissionRate    decimal.Decimal `gorm:"type:decimal(5,4);not null" json:"commissionRate"`
	CommissionAmount  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"commissionAmount"`
	DeductedFromStock bool            `gorm:"default:false" json:"deductedFromStock"`
	DeductedAt        *time.Time      `json:"deductedAt,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// InvoicePayment rows are append-only. Corrections are recorded as new
// negative entries, never as updates.
type InvoicePayment struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;index;not null" json:"invoiceId"`
	Amount      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Method      string          `gorm:"type:varchar(30);not null" json:"method"`
	Reference   *string         `json:"reference,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	ProcessedBy uuid.UUID       `gorm:"type:uuid" json:"processedBy"`
	PaidAt      time.Time       `gorm:"not null" json:"paidAt"`
	CreatedAt   time.Time       `json:"createdAt"`
}

const (
	PaymentMethodRefund     = "refund"
	PaymentMethodAdjustment = "adjustment"
)

type CommissionStatus string

const (
	CommissionPending   CommissionStatus = "pending"
	CommissionApproved  CommissionStatus = "approved"
	CommissionPaid      CommissionStatus = "paid"
	CommissionCancelled CommissionStatus = "cancelled"
)

type InvoiceCommission struct {
	ID                 uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	InvoiceID          uuid.UUID        `gorm:"type:uuid;uniqueIndex;not null" json:"invoiceId"`
	StylistID          uuid.UUID        `gorm:"type:uuid;index;not null" json:"stylistId"`
	ServicesCommission decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"servicesCommission"`
	ProductsCommission decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"productsCommission"`
	TotalCommission    decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"totalCommission"`
	PaymentStatus      CommissionStatus `gorm:"type:varchar(20);default:'pending';index" json:"paymentStatus"`
	ApprovedBy         *uuid.UUID       `gorm:"type:uuid" json:"approvedBy,omitempty"`
	ApprovedAt         *time.Time       `json:"approvedAt,omitempty"`
	PaymentReference   string           `json:"paymentReference,omitempty"`
	PaymentDate        *time.Time       `json:"paymentDate,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

func (InvoiceServiceLine) TableName() string { return "invoice_services" }
func (InvoiceProductLine) TableName() string { return "invoice_products" }
func (InvoicePayment) TableName() string     { return "invoice_payments" }
func (InvoiceCommission) TableName() string  { return "invoice_commissions" }
