package repository

import (
	"context"
	"time"

	"salonpro-billing/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookingRepository interface {
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Booking, error)
	ListActiveAssigned(ctx context.Context, tx *gorm.DB, stylistID uuid.UUID, from, to time.Time) ([]models.Booking, error)
	Update(ctx context.Context, tx *gorm.DB, b *models.Booking) error
	MarkInvoiced(ctx context.Context, tx *gorm.DB, bookingID, invoiceID uuid.UUID) error
	UpdatePaymentStatus(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, status models.PaymentStatus, paidAt time.Time) error
}

type bookingRepo struct{ db *gorm.DB }

func NewBookingRepository(db *gorm.DB) BookingRepository { return &bookingRepo{db: db} }

func (r *bookingRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	if err := conn(r.db, tx).WithContext(ctx).Preload("Customer").Where("id = ?", id).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// ListActiveAssigned narrows to calendar-blocking bookings of the stylist
// that touch [from, to). Callers still apply the exact overlap rule.
func (r *bookingRepo) ListActiveAssigned(ctx context.Context, tx *gorm.DB, stylistID uuid.UUID, from, to time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := conn(r.db, tx).WithContext(ctx).
		Preload("Customer").
		Where("stylist_id = ?", stylistID).
		Where("status IN ?", []models.BookingStatus{models.BookingConfirmed, models.BookingRequested}).
		Where("assigned_start_time IS NOT NULL AND assigned_end_time IS NOT NULL").
		Where("((assigned_start_time >= ? AND assigned_start_time < ?) OR "+
			"(assigned_end_time > ? AND assigned_end_time <= ?) OR "+
			"(assigned_start_time <= ? AND assigned_end_time >= ?))",
			from, to, from, to, from, to).
		Order("assigned_start_time").
		Find(&bookings).Error
	return bookings, err
}

func (r *bookingRepo) Update(ctx context.Context, tx *gorm.DB, b *models.Booking) error {
	return conn(r.db, tx).WithContext(ctx).Omit("Customer").Save(b).Error
}

func (r *bookingRepo) MarkInvoiced(ctx context.Context, tx *gorm.DB, bookingID, invoiceID uuid.UUID) error {
	return conn(r.db, tx).WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", bookingID).
		Updates(map[string]interface{}{
			"invoiced":   true,
			"invoice_id": invoiceID,
		}).Error
}

func (r *bookingRepo) UpdatePaymentStatus(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, status models.PaymentStatus, paidAt time.Time) error {
	return conn(r.db, tx).WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", bookingID).
		Updates(map[string]interface{}{
			"payment_status": status,
			"paid_at":        paidAt,
		}).Error
}
