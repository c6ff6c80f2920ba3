package services

import (
	"context"
	"errors"

	"salonpro-billing/models"
	"salonpro-billing/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ItemKind string

const (
	ItemService ItemKind = "service"
	ItemProduct ItemKind = "product"
)

// RateRequest is everything the commission cascade looks at for one line.
type RateRequest struct {
	Kind             ItemKind
	Override         *decimal.Decimal
	CatalogRate      *decimal.Decimal
	StylistRate      *decimal.Decimal
	IsServiceProduct bool
}

// CommissionDefaults are the salon-wide fallbacks per item kind.
type CommissionDefaults struct {
	Service        *decimal.Decimal
	Product        *decimal.Decimal
	ServiceProduct *decimal.Decimal
}

func DefaultsFromSettings(s *models.Settings) CommissionDefaults {
	return CommissionDefaults{
		Service:        s.DefaultServiceCommissionRate,
		Product:        s.DefaultProductCommissionRate,
		ServiceProduct: s.DefaultServiceProductCommissionRate,
	}
}

// ResolveRate picks the first rate that is set, in order: line override,
// catalog rate, stylist default (services only), salon default for the
// item kind. It returns zero only when the salon default is unset too.
func ResolveRate(req RateRequest, defaults CommissionDefaults) decimal.Decimal {
	if req.Override != nil {
		return *req.Override
	}
	if req.CatalogRate != nil {
		return *req.CatalogRate
	}
	if req.Kind == ItemService && req.StylistRate != nil {
		return *req.StylistRate
	}

	var fallback *decimal.Decimal
	switch {
	case req.Kind == ItemService:
		fallback = defaults.Service
	case req.IsServiceProduct:
		fallback = defaults.ServiceProduct
	default:
		fallback = defaults.Product
	}
	if fallback == nil {
		return decimal.Zero
	}
	return *fallback
}

// RateResolver is the store-backed form of ResolveRate. Missing catalog or
// stylist records count as unset rates rather than errors.
type RateResolver struct {
	catalog  repository.CatalogRepository
	settings repository.SettingsRepository
}

func NewRateResolver(catalog repository.CatalogRepository, settings repository.SettingsRepository) *RateResolver {
	return &RateResolver{catalog: catalog, settings: settings}
}

func (r *RateResolver) Resolve(ctx context.Context, itemID uuid.UUID, kind ItemKind, stylistID uuid.UUID, override *decimal.Decimal) (decimal.Decimal, error) {
	settings, err := r.settings.Get(ctx, nil)
	if err != nil {
		return decimal.Zero, storage(err, "settings")
	}
	return r.resolveTx(ctx, nil, settings, itemID, kind, stylistID, override)
}

func (r *RateResolver) resolveTx(ctx context.Context, tx *gorm.DB, settings *models.Settings, itemID uuid.UUID, kind ItemKind, stylistID uuid.UUID, override *decimal.Decimal) (decimal.Decimal, error) {
	req := RateRequest{Kind: kind, Override: override}
	if override == nil {
		switch kind {
		case ItemService:
			svc, err := r.catalog.FindService(ctx, tx, itemID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return decimal.Zero, storage(err, "service")
			}
			if svc != nil {
				req.CatalogRate = svc.CommissionRate
			}
			stylist, err := r.catalog.FindStylist(ctx, tx, stylistID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return decimal.Zero, storage(err, "stylist")
			}
			if stylist != nil {
				req.StylistRate = stylist.CommissionRate
			}
		case ItemProduct:
			product, err := r.catalog.FindProduct(ctx, tx, itemID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return decimal.Zero, storage(err, "product")
			}
			if product != nil {
				req.CatalogRate = product.CommissionRate
				req.IsServiceProduct = product.IsServiceProduct
			}
		}
	}
	return ResolveRate(req, DefaultsFromSettings(settings)), nil
}
