package repository

import (
	"context"
	"errors"

	"salonpro-billing/models"

	"gorm.io/gorm"
)

type SettingsRepository interface {
	Get(ctx context.Context, tx *gorm.DB) (*models.Settings, error)
	ClaimInvoiceNumber(ctx context.Context, tx *gorm.DB) (int64, error)
}

type settingsRepo struct{ db *gorm.DB }

func NewSettingsRepository(db *gorm.DB) SettingsRepository { return &settingsRepo{db: db} }

func (r *settingsRepo) Get(ctx context.Context, tx *gorm.DB) (*models.Settings, error) {
	var s models.Settings
	if err := conn(r.db, tx).WithContext(ctx).Where("id = ?", models.SettingsID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ClaimInvoiceNumber increments the counter and returns the value it held,
// in one statement. Inside a transaction the row stays locked until commit,
// so concurrent finalizations queue behind each other.
func (r *settingsRepo) ClaimInvoiceNumber(ctx context.Context, tx *gorm.DB) (int64, error) {
	var claimed []int64
	err := conn(r.db, tx).WithContext(ctx).Raw(
		`UPDATE settings
		    SET invoice_next_number = invoice_next_number + 1, updated_at = NOW()
		  WHERE id = ?
		RETURNING invoice_next_number - 1`, models.SettingsID).
		Scan(&claimed).Error
	if err != nil {
		return 0, err
	}
	if len(claimed) == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return claimed[0], nil
}

// EnsureSettings seeds the singleton row on first start.
func EnsureSettings(ctx context.Context, db *gorm.DB) error {
	var s models.Settings
	err := db.WithContext(ctx).Where("id = ?", models.SettingsID).First(&s).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	defaults := models.DefaultSettings()
	return db.WithContext(ctx).Create(&defaults).Error
}
