package repository

import (
	"context"
	"time"

	"salonpro-billing/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CommissionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, c *models.InvoiceCommission) error
	FindByInvoiceID(ctx context.Context, tx *gorm.DB, invoiceID uuid.UUID) (*models.InvoiceCommission, error)
	LockByInvoiceIDs(ctx context.Context, tx *gorm.DB, invoiceIDs []uuid.UUID) ([]models.InvoiceCommission, error)
	Update(ctx context.Context, tx *gorm.DB, c *models.InvoiceCommission) error
	MarkPaid(ctx context.Context, tx *gorm.DB, invoiceIDs []uuid.UUID, reference string, paidAt time.Time) error
	ListForStylist(ctx context.Context, stylistID uuid.UUID, from, to time.Time) ([]models.Invoice, error)
}

type commissionRepo struct{ db *gorm.DB }

func NewCommissionRepository(db *gorm.DB) CommissionRepository { return &commissionRepo{db: db} }

func (r *commissionRepo) Create(ctx context.Context, tx *gorm.DB, c *models.InvoiceCommission) error {
	return conn(r.db, tx).WithContext(ctx).Create(c).Error
}

func (r *commissionRepo) FindByInvoiceID(ctx context.Context, tx *gorm.DB, invoiceID uuid.UUID) (*models.InvoiceCommission, error) {
	var c models.InvoiceCommission
	if err := conn(r.db, tx).WithContext(ctx).Where("invoice_id = ?", invoiceID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *commissionRepo) LockByInvoiceIDs(ctx context.Context, tx *gorm.DB, invoiceIDs []uuid.UUID) ([]models.InvoiceCommission, error) {
	var rows []models.InvoiceCommission
	err := conn(r.db, tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("invoice_id IN ?", invoiceIDs).
		Order("invoice_id").
		Find(&rows).Error
	return rows, err
}

func (r *commissionRepo) Update(ctx context.Context, tx *gorm.DB, c *models.InvoiceCommission) error {
	return conn(r.db, tx).WithContext(ctx).Save(c).Error
}

// MarkPaid flips the commission rows and the invoice-level flag together.
func (r *commissionRepo) MarkPaid(ctx context.Context, tx *gorm.DB, invoiceIDs []uuid.UUID, reference string, paidAt time.Time) error {
	db := conn(r.db, tx).WithContext(ctx)
	if err := db.Model(&models.InvoiceCommission{}).
		Where("invoice_id IN ?", invoiceIDs).
		Updates(map[string]interface{}{
			"payment_status":    models.CommissionPaid,
			"payment_reference": reference,
			"payment_date":      paidAt,
		}).Error; err != nil {
		return err
	}
	return db.Model(&models.Invoice{}).
		Where("id IN ?", invoiceIDs).
		Updates(map[string]interface{}{
			"commission_paid":      true,
			"commission_paid_date": paidAt,
		}).Error
}

// ListForStylist returns finalized or sent invoices with their commission
// whose service date lies in [from, to).
func (r *commissionRepo) ListForStylist(ctx context.Context, stylistID uuid.UUID, from, to time.Time) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Preload("Commission").
		Where("stylist_id = ? AND service_date >= ? AND service_date < ?", stylistID, from, to).
		Where("status IN ?", []models.InvoiceStatus{models.InvoiceStatusFinalized, models.InvoiceStatusSent}).
		Order("service_date").
		Find(&invoices).Error
	return invoices, err
}
