package repository

import (
	"context"
	"time"

	"salonpro-billing/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InvoiceFilter struct {
	Status     models.InvoiceStatus
	StylistID  *uuid.UUID
	CustomerID *uuid.UUID
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

type InvoiceRepository interface {
	Create(ctx context.Context, tx *gorm.DB, inv *models.Invoice) error
	CreateServiceLine(ctx context.Context, tx *gorm.DB, line *models.InvoiceServiceLine) error
	CreateProductLine(ctx context.Context, tx *gorm.DB, line *models.InvoiceProductLine) error
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Invoice, error)
	FindLiveByBooking(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) (*models.Invoice, error)
	LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	Update(ctx context.Context, tx *gorm.DB, inv *models.Invoice) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	MarkProductLineDeducted(ctx context.Context, tx *gorm.DB, lineID uuid.UUID, at time.Time) error
	AddPayment(ctx context.Context, tx *gorm.DB, p *models.InvoicePayment) error
	ListPendingStockDeductions(ctx context.Context) ([]uuid.UUID, error)
	List(ctx context.Context, filter InvoiceFilter) ([]models.Invoice, error)
}

type invoiceRepo struct{ db *gorm.DB }

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository { return &invoiceRepo{db: db} }

func (r *invoiceRepo) Create(ctx context.Context, tx *gorm.DB, inv *models.Invoice) error {
	return conn(r.db, tx).WithContext(ctx).Omit(clause.Associations).Create(inv).Error
}

func (r *invoiceRepo) CreateServiceLine(ctx context.Context, tx *gorm.DB, line *models.InvoiceServiceLine) error {
	return conn(r.db, tx).WithContext(ctx).Create(line).Error
}

func (r *invoiceRepo) CreateProductLine(ctx context.Context, tx *gorm.DB, line *models.InvoiceProductLine) error {
	return conn(r.db, tx).WithContext(ctx).Create(line).Error
}

func (r *invoiceRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Invoice, error) {
	var inv models.Invoice
	err := conn(r.db, tx).WithContext(ctx).
		Preload("Services", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		Preload("Products", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("paid_at, created_at") }).
		Preload("Commission").
		Where("id = ?", id).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// FindLiveByBooking returns the booking's invoice that is neither cancelled
// nor void, or nil when there is none.
func (r *invoiceRepo) FindLiveByBooking(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) (*models.Invoice, error) {
	var invoices []models.Invoice
	err := conn(r.db, tx).WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Where("status NOT IN ?", []models.InvoiceStatus{models.InvoiceStatusCancelled, models.InvoiceStatusVoid}).
		Limit(1).
		Find(&invoices).Error
	if err != nil || len(invoices) == 0 {
		return nil, err
	}
	return &invoices[0], nil
}

// LockByID takes a row lock on the invoice header for the rest of tx.
func (r *invoiceRepo) LockByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	var inv models.Invoice
	return conn(r.db, tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", id).
		First(&inv).Error
}

// Update writes header columns only; lines and payments have their own writers.
func (r *invoiceRepo) Update(ctx context.Context, tx *gorm.DB, inv *models.Invoice) error {
	return conn(r.db, tx).WithContext(ctx).Omit(clause.Associations).Save(inv).Error
}

func (r *invoiceRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	db := conn(r.db, tx).WithContext(ctx)
	if err := db.Where("invoice_id = ?", id).Delete(&models.InvoiceServiceLine{}).Error; err != nil {
		return err
	}
	if err := db.Where("invoice_id = ?", id).Delete(&models.InvoiceProductLine{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&models.Invoice{}).Error
}

// MarkProductLineDeducted only flips lines that are still pending, so a
// concurrent second attempt is a no-op at the row level.
func (r *invoiceRepo) MarkProductLineDeducted(ctx context.Context, tx *gorm.DB, lineID uuid.UUID, at time.Time) error {
	return conn(r.db, tx).WithContext(ctx).
		Model(&models.InvoiceProductLine{}).
		Where("id = ? AND deducted_from_stock = ?", lineID, false).
		Updates(map[string]interface{}{
			"deducted_from_stock": true,
			"deducted_at":         at,
		}).Error
}

func (r *invoiceRepo) AddPayment(ctx context.Context, tx *gorm.DB, p *models.InvoicePayment) error {
	return conn(r.db, tx).WithContext(ctx).Create(p).Error
}

func (r *invoiceRepo) ListPendingStockDeductions(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Table("invoice_products").
		Distinct("invoice_products.invoice_id").
		Joins("JOIN invoices ON invoices.id = invoice_products.invoice_id").
		Where("invoices.status IN ?", []models.InvoiceStatus{models.InvoiceStatusFinalized, models.InvoiceStatusSent}).
		Where("invoice_products.product_type = ? AND invoice_products.deducted_from_stock = ?", models.ProductTypeRetail, false).
		Pluck("invoice_products.invoice_id", &ids).Error
	return ids, err
}

func (r *invoiceRepo) List(ctx context.Context, filter InvoiceFilter) ([]models.Invoice, error) {
	q := r.db.WithContext(ctx).Model(&models.Invoice{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.StylistID != nil {
		q = q.Where("stylist_id = ?", *filter.StylistID)
	}
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.From != nil {
		q = q.Where("service_date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("service_date < ?", *filter.To)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	var invoices []models.Invoice
	err := q.Preload("Services").Preload("Products").Preload("Commission").
		Order("invoice_date DESC").
		Find(&invoices).Error
	return invoices, err
}
