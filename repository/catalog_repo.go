package repository

import (
	"context"
	"time"

	"salonpro-billing/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogRepository reads the collaborator records an invoice is built
// from: services, products, stylists and customers.
type CatalogRepository interface {
	FindService(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Service, error)
	FindProduct(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Product, error)
	FindStylist(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Stylist, error)
	LockStylist(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	FindCustomer(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Customer, error)
	DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, allowNegative bool) (bool, error)
	RecordCustomerVisit(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, spent decimal.Decimal, visitedAt time.Time) error
}

type catalogRepo struct{ db *gorm.DB }

func NewCatalogRepository(db *gorm.DB) CatalogRepository { return &catalogRepo{db: db} }

func (r *catalogRepo) FindService(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Service, error) {
	var s models.Service
	if err := conn(r.db, tx).WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *catalogRepo) FindProduct(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := conn(r.db, tx).WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *catalogRepo) FindStylist(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Stylist, error) {
	var s models.Stylist
	if err := conn(r.db, tx).WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// LockStylist serializes calendar writes for one stylist until tx ends.
func (r *catalogRepo) LockStylist(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	var s models.Stylist
	return conn(r.db, tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", id).
		First(&s).Error
}

func (r *catalogRepo) FindCustomer(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Customer, error) {
	var c models.Customer
	if err := conn(r.db, tx).WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// DecrementStock subtracts qty in a single conditional UPDATE. It reports
// false without touching the row when stock is short and negatives are off.
func (r *catalogRepo) DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, allowNegative bool) (bool, error) {
	q := conn(r.db, tx).WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID)
	if !allowNegative {
		q = q.Where("stock_quantity >= ?", qty)
	}
	res := q.Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *catalogRepo) RecordCustomerVisit(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, spent decimal.Decimal, visitedAt time.Time) error {
	return conn(r.db, tx).WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", customerID).
		Updates(map[string]interface{}{
			"total_visits": gorm.Expr("total_visits + ?", 1),
			"total_spent":  gorm.Expr("total_spent + ?", spent),
			"last_visit":   visitedAt,
		}).Error
}
