// Package repository maps the billing aggregates onto postgres through gorm.
// Every method accepts an optional transaction; a nil tx runs against the
// base connection.
package repository

import (
	"gorm.io/gorm"
)

// Repositories bundles the stores the services depend on. DB is nil when
// the stores are in-memory test doubles.
type Repositories struct {
	DB          *gorm.DB
	Invoices    InvoiceRepository
	Commissions CommissionRepository
	Bookings    BookingRepository
	Catalog     CatalogRepository
	Settings    SettingsRepository
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:          db,
		Invoices:    NewInvoiceRepository(db),
		Commissions: NewCommissionRepository(db),
		Bookings:    NewBookingRepository(db),
		Catalog:     NewCatalogRepository(db),
		Settings:    NewSettingsRepository(db),
	}
}

// conn picks the transaction when one is open.
func conn(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}
