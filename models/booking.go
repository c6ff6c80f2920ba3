package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingRequested BookingStatus = "REQUESTED"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// BlocksCalendar reports whether a booking in this status occupies its
// assigned slot for conflict purposes.
func (s BookingStatus) BlocksCalendar() bool {
	return s == BookingRequested || s == BookingConfirmed
}

type Booking struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	CustomerID uuid.UUID  `gorm:"type:uuid;index;not null" json:"customerId"`
	Customer   *Customer  `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	StylistID  *uuid.UUID `gorm:"type:uuid;index" json:"stylistId,omitempty"`
	ServiceID  *uuid.UUID `gorm:"type:uuid" json:"serviceId,omitempty"`

	RequestedDate       time.Time  `gorm:"type:date;not null" json:"requestedDate"`
	RequestedTimeWindow string     `gorm:"type:varchar(20)" json:"requestedTimeWindow"` // MORNING, AFTERNOON, EVENING
	AssignedStartTime   *time.Time `gorm:"index" json:"assignedStartTime,omitempty"`
	AssignedEndTime     *time.Time `json:"assignedEndTime,omitempty"`
	// Time mirrors the assigned start as "15:04" for older clients.
	Time string `gorm:"type:varchar(5)" json:"time,omitempty"`

	Status                 BookingStatus    `gorm:"type:varchar(20);default:'REQUESTED';index" json:"status"`
	CommissionRateOverride *decimal.Decimal `gorm:"type:decimal(5,4)" json:"commissionRateOverride,omitempty"`

	PaymentStatus PaymentStatus `gorm:"type:varchar(20);default:'unpaid'" json:"paymentStatus"`
	PaidAt        *time.Time    `json:"paidAt,omitempty"`
	Invoiced      bool          `gorm:"default:false" json:"invoiced"`
	InvoiceID     *uuid.UUID    `gorm:"type:uuid" json:"invoiceId,omitempty"`

	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (b *Booking) CustomerName() string {
	if b.Customer == nil {
		return ""
	}
	return b.Customer.Name
}
