package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salonpro-billing/models"
	"salonpro-billing/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// runTx runs fn inside a transaction. With a nil db (unit tests against
// in-memory repositories) fn is called with a nil tx.
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

type InvoiceService struct {
	repos    *repository.Repositories
	resolver *RateResolver
	locker   Locker
	events   EventPublisher
	notifier Notifier
	now      func() time.Time
}

func NewInvoiceService(repos *repository.Repositories, locker Locker, events EventPublisher, notifier Notifier) *InvoiceService {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if events == nil {
		events = NopPublisher{}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &InvoiceService{
		repos:    repos,
		resolver: NewRateResolver(repos.Catalog, repos.Settings),
		locker:   locker,
		events:   events,
		notifier: notifier,
		now:      time.Now,
	}
}

type ServiceLineInput struct {
	ServiceID uuid.UUID       `json:"serviceId" binding:"required"`
	Quantity  int             `json:"quantity"`
	Discount  decimal.Decimal `json:"discount"`
	// UnitPrice replaces the catalog price when set.
	UnitPrice      *decimal.Decimal `json:"unitPrice"`
	CommissionRate *decimal.Decimal `json:"commissionRate"`
}

type ProductLineInput struct {
	ProductID      uuid.UUID        `json:"productId" binding:"required"`
	Quantity       int              `json:"quantity"`
	Discount       decimal.Decimal  `json:"discount"`
	UnitPrice      *decimal.Decimal `json:"unitPrice"`
	CommissionRate *decimal.Decimal `json:"commissionRate"`
}

type CreateInvoiceInput struct {
	BookingID   *uuid.UUID         `json:"bookingId"`
	CustomerID  uuid.UUID          `json:"customerId"`
	StylistID   uuid.UUID          `json:"stylistId"`
	CreatedBy   uuid.UUID          `json:"-"`
	ServiceDate time.Time          `json:"serviceDate"`
	Services    []ServiceLineInput `json:"services" binding:"dive"`
	Products    []ProductLineInput `json:"products" binding:"dive"`
	Discount    *DiscountInput     `json:"discount"`
	Notes       string             `json:"notes"`
}

func validateRate(rate *decimal.Decimal) error {
	if rate == nil {
		return nil
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return validation("commission rate %s must be between 0 and 1", rate.String())
	}
	return nil
}

func normalizeQuantity(qty int) (int, error) {
	switch {
	case qty < 0:
		return 0, validation("quantity cannot be negative")
	case qty == 0:
		return 1, nil
	}
	return qty, nil
}

func (in *CreateInvoiceInput) validate() error {
	if len(in.Services) == 0 && len(in.Products) == 0 {
		return validation("an invoice needs at least one service or product")
	}
	for i := range in.Services {
		l := &in.Services[i]
		if l.ServiceID == uuid.Nil {
			return validation("service is required on every service line")
		}
		qty, err := normalizeQuantity(l.Quantity)
		if err != nil {
			return err
		}
		l.Quantity = qty
		if l.Discount.IsNegative() {
			return validation("line discount cannot be negative")
		}
		if l.UnitPrice != nil && l.UnitPrice.IsNegative() {
			return validation("unit price cannot be negative")
		}
		if err := validateRate(l.CommissionRate); err != nil {
			return err
		}
	}
	for i := range in.Products {
		l := &in.Products[i]
		if l.ProductID == uuid.Nil {
			return validation("product is required on every product line")
		}
		qty, err := normalizeQuantity(l.Quantity)
		if err != nil {
			return err
		}
		l.Quantity = qty
		if l.Discount.IsNegative() {
			return validation("line discount cannot be negative")
		}
		if l.UnitPrice != nil && l.UnitPrice.IsNegative() {
			return validation("unit price cannot be negative")
		}
		if err := validateRate(l.CommissionRate); err != nil {
			return err
		}
	}
	return nil
}

// lineDraft is a priced line before it is persisted.
type lineDraft struct {
	itemID    uuid.UUID
	name      string
	kind      ItemKind
	prodType  models.ProductType
	unitPrice decimal.Decimal
	quantity  int
	discount  decimal.Decimal
	override  *decimal.Decimal
	rate      decimal.Decimal
	amounts   LineAmounts
}

// Create builds and persists a draft invoice. Header and lines are written
// in one transaction; each persisted line re-resolves its rate and the sum
// of persisted commissions must match the header.
func (s *InvoiceService) Create(ctx context.Context, in CreateInvoiceInput) (*models.Invoice, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.BookingID != nil {
		unlock, err := s.locker.Lock(ctx, bookingKey(*in.BookingID))
		if err != nil {
			return nil, &Error{Kind: KindStorage, Message: "could not lock booking", Err: err}
		}
		defer unlock()
	}

	var invoiceID uuid.UUID
	err := runTx(ctx, s.repos.DB, func(tx *gorm.DB) error {
		settings, err := s.repos.Settings.Get(ctx, tx)
		if err != nil {
			return storage(err, "settings")
		}

		var bookingOverride *decimal.Decimal
		if in.BookingID != nil {
			booking, err := s.repos.Bookings.FindByID(ctx, tx, *in.BookingID)
			if err != nil {
				return storage(err, "booking")
			}
			if booking.Status == models.BookingCancelled {
				return invalidTransition("booking %s is cancelled", booking.ID)
			}
			if booking.Invoiced {
				return invalidTransition("booking %s is already invoiced", booking.ID)
			}
			live, err := s.repos.Invoices.FindLiveByBooking(ctx, tx, booking.ID)
			if err != nil {
				return storage(err, "invoice")
			}
			if live != nil {
				return invalidTransition("booking %s already has %s invoice %s", booking.ID, live.Status, live.ID)
			}
			if in.CustomerID == uuid.Nil {
				in.CustomerID = booking.CustomerID
			}
			if in.StylistID == uuid.Nil && booking.StylistID != nil {
				in.StylistID = *booking.StylistID
			}
			if in.ServiceDate.IsZero() && booking.AssignedStartTime != nil {
				in.ServiceDate = *booking.AssignedStartTime
			}
			bookingOverride = booking.CommissionRateOverride
		}
		if in.CustomerID == uuid.Nil {
			return validation("customer is required")
		}
		if in.StylistID == uuid.Nil {
			return validation("stylist is required")
		}
		if _, err := s.repos.Catalog.FindCustomer(ctx, tx, in.CustomerID); err != nil {
			return storage(err, "customer")
		}
		if _, err := s.repos.Catalog.FindStylist(ctx, tx, in.StylistID); err != nil {
			return storage(err, "stylist")
		}

		drafts, err := s.priceLines(ctx, tx, settings, &in, bookingOverride)
		if err != nil {
			return err
		}
		var serviceAmounts, productAmounts []LineAmounts
		for _, d := range drafts {
			if d.kind == ItemService {
				serviceAmounts = append(serviceAmounts, d.amounts)
			} else {
				productAmounts = append(productAmounts, d.amounts)
			}
		}
		servicesSubtotal, _ := SumLines(serviceAmounts)
		productsSubtotal, _ := SumLines(productAmounts)
		discount, err := ComputeDiscount(in.Discount, servicesSubtotal.Add(productsSubtotal), settings)
		if err != nil {
			return err
		}
		totals := ComputeTotals(serviceAmounts, productAmounts, discount.Amount, settings.TaxRate, settings.TaxEnabled)

		now := s.now()
		serviceDate := in.ServiceDate
		if serviceDate.IsZero() {
			serviceDate = now
		}
		taxRate := decimal.Zero
		if settings.TaxEnabled {
			taxRate = settings.TaxRate
		}
		inv := &models.Invoice{
			ID:               uuid.New(),
			BookingID:        in.BookingID,
			CustomerID:       in.CustomerID,
			StylistID:        in.StylistID,
			CreatedByUserID:  in.CreatedBy,
			ServicesSubtotal: totals.ServicesSubtotal,
			ProductsSubtotal: totals.ProductsSubtotal,
			Subtotal:         totals.Subtotal,
			Discount:         discount,
			TaxRate:          taxRate,
			TaxAmount:        totals.TaxAmount,
			Total:            totals.Total,
			PaymentStatus:    models.PaymentStatusUnpaid,
			AmountPaid:       decimal.Zero,
			AmountDue:        totals.Total,
			CommissionTotal:  totals.CommissionTotal,
			Status:           models.InvoiceStatusDraft,
			ServiceDate:      serviceDate,
			InvoiceDate:      now,
			Notes:            in.Notes,
		}
		if err := s.repos.Invoices.Create(ctx, tx, inv); err != nil {
			return storage(err, "invoice")
		}

		persisted, err := s.persistLines(ctx, tx, settings, inv, drafts)
		if err != nil {
			return err
		}
		if !persisted.Equal(inv.CommissionTotal) {
			return &Error{
				Kind:    KindStorage,
				Message: fmt.Sprintf("line commissions %s do not match invoice commission %s", persisted.StringFixed(2), inv.CommissionTotal.StringFixed(2)),
			}
		}
		invoiceID = inv.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("invoice_id", invoiceID.String()).Msg("draft invoice created")
	return s.GetByID(ctx, invoiceID)
}

func (s *InvoiceService) priceLines(ctx context.Context, tx *gorm.DB, settings *models.Settings, in *CreateInvoiceInput, bookingOverride *decimal.Decimal) ([]lineDraft, error) {
	drafts := make([]lineDraft, 0, len(in.Services)+len(in.Products))
	for _, l := range in.Services {
		svc, err := s.repos.Catalog.FindService(ctx, tx, l.ServiceID)
		if err != nil {
			return nil, storage(err, "service")
		}
		if !svc.IsActive {
			return nil, validation("service %s is not active", svc.Name)
		}
		override := l.CommissionRate
		if override == nil {
			override = bookingOverride
		}
		d := lineDraft{
			itemID:    svc.ID,
			name:      svc.Name,
			kind:      ItemService,
			unitPrice: svc.Price,
			quantity:  l.Quantity,
			discount:  l.Discount,
			override:  override,
		}
		if l.UnitPrice != nil {
			d.unitPrice = *l.UnitPrice
		}
		if d.rate, err = s.resolver.resolveTx(ctx, tx, settings, svc.ID, ItemService, in.StylistID, override); err != nil {
			return nil, err
		}
		d.amounts = CalculateLine(d.unitPrice, d.quantity, d.discount, d.rate)
		drafts = append(drafts, d)
	}
	for _, l := range in.Products {
		product, err := s.repos.Catalog.FindProduct(ctx, tx, l.ProductID)
		if err != nil {
			return nil, storage(err, "product")
		}
		if !product.IsActive {
			return nil, validation("product %s is not active", product.Name)
		}
		d := lineDraft{
			itemID:    product.ID,
			name:      product.Name,
			kind:      ItemProduct,
			prodType:  product.Type(),
			unitPrice: product.Price,
			quantity:  l.Quantity,
			discount:  l.Discount,
			override:  l.CommissionRate,
		}
		if l.UnitPrice != nil {
			d.unitPrice = *l.UnitPrice
		}
		if d.rate, err = s.resolver.resolveTx(ctx, tx, settings, product.ID, ItemProduct, in.StylistID, l.CommissionRate); err != nil {
			return nil, err
		}
		d.amounts = CalculateLine(d.unitPrice, d.quantity, d.discount, d.rate)
		drafts = append(drafts, d)
	}
	return drafts, nil
}

// persistLines writes every line with a freshly resolved rate and returns
// the commission sum actually stored.
func (s *InvoiceService) persistLines(ctx context.Context, tx *gorm.DB, settings *models.Settings, inv *models.Invoice, drafts []lineDraft) (decimal.Decimal, error) {
	stored := decimal.Zero
	for _, d := range drafts {
		rate, err := s.resolver.resolveTx(ctx, tx, settings, d.itemID, d.kind, inv.StylistID, d.override)
		if err != nil {
			return decimal.Zero, err
		}
		amounts := CalculateLine(d.unitPrice, d.quantity, d.discount, rate)

		if d.kind == ItemService {
			line := &models.InvoiceServiceLine{
				ID:               uuid.New(),
				InvoiceID:        inv.ID,
				ServiceID:        d.itemID,
				ServiceName:      d.name,
				UnitPrice:        d.unitPrice,
				Quantity:         d.quantity,
				Discount:         d.discount,
				LineTotal:        amounts.LineTotal,
				CommissionRate:   rate,
				CommissionAmount: amounts.CommissionAmount,
			}
			if err := s.repos.Invoices.CreateServiceLine(ctx, tx, line); err != nil {
				return decimal.Zero, storage(err, "invoice service line")
			}
		} else {
			line := &models.InvoiceProductLine{
				ID:               uuid.New(),
				InvoiceID:        inv.ID,
				ProductID:        d.itemID,
				ProductName:      d.name,
				ProductType:      d.prodType,
				UnitPrice:        d.unitPrice,
				Quantity:         d.quantity,
				Discount:         d.discount,
				LineTotal:        amounts.LineTotal,
				CommissionRate:   rate,
				CommissionAmount: amounts.CommissionAmount,
			}
			if err := s.repos.Invoices.CreateProductLine(ctx, tx, line); err != nil {
				return decimal.Zero, storage(err, "invoice product line")
			}
		}
		stored = stored.Add(amounts.CommissionAmount)
	}
	return stored, nil
}

// withInvoiceLock holds the per-invoice lock and a row lock for fn.
func (s *InvoiceService) withInvoiceLock(ctx context.Context, id uuid.UUID, fn func(tx *gorm.DB, inv *models.Invoice) error) error {
	unlock, err := s.locker.Lock(ctx, invoiceKey(id))
	if err != nil {
		return &Error{Kind: KindStorage, Message: "could not lock invoice", Err: err}
	}
	defer unlock()

	return runTx(ctx, s.repos.DB, func(tx *gorm.DB) error {
		if err := s.repos.Invoices.LockByID(ctx, tx, id); err != nil {
			return storage(err, "invoice")
		}
		inv, err := s.repos.Invoices.FindByID(ctx, tx, id)
		if err != nil {
			return storage(err, "invoice")
		}
		return fn(tx, inv)
	})
}

// Finalize numbers and seals a draft: commission snapshot, booking link,
// customer visit stats and stock deduction all commit together.
func (s *InvoiceService) Finalize(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var warnings []string
	var number string
	var inv *models.Invoice
	err := s.withInvoiceLock(ctx, id, func(tx *gorm.DB, locked *models.Invoice) error {
		inv = locked
		if !inv.IsDraft() {
			return invalidTransition("cannot finalize a %s invoice", inv.Status)
		}
		settings, err := s.repos.Settings.Get(ctx, tx)
		if err != nil {
			return storage(err, "settings")
		}

		seq, err := s.repos.Settings.ClaimInvoiceNumber(ctx, tx)
		if err != nil {
			return storage(err, "invoice number counter")
		}
		now := s.now()
		number = FormatInvoiceNumber(settings, seq, now)
		inv.InvoiceNumber = &number
		inv.Status = models.InvoiceStatusFinalized
		inv.FinalizedAt = &now
		if err := s.repos.Invoices.Update(ctx, tx, inv); err != nil {
			return storage(err, "invoice")
		}

		commission := buildCommission(inv, settings, now)
		if err := s.repos.Commissions.Create(ctx, tx, commission); err != nil {
			return storage(err, "invoice commission")
		}

		if inv.BookingID != nil {
			if err := s.repos.Bookings.MarkInvoiced(ctx, tx, *inv.BookingID, inv.ID); err != nil {
				return storage(err, "booking")
			}
		}
		if err := s.repos.Catalog.RecordCustomerVisit(ctx, tx, inv.CustomerID, inv.Total, inv.ServiceDate); err != nil {
			return storage(err, "customer")
		}

		if settings.DeductStockOnFinalize {
			if warnings, err = s.deductStock(ctx, tx, settings, inv); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("invoice_id", id.String()).
		Str("invoice_number", number).
		Int("stock_warnings", len(warnings)).
		Msg("invoice finalized")
	total := inv.Total
	publish(s.events, Event{
		Type:          EventInvoiceFinalized,
		InvoiceID:     id,
		InvoiceNumber: number,
		StylistID:     inv.StylistID,
		Amount:        &total,
		Status:        string(models.InvoiceStatusFinalized),
	})

	out, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out.Warnings = warnings
	return out, nil
}

func buildCommission(inv *models.Invoice, settings *models.Settings, now time.Time) *models.InvoiceCommission {
	services := decimal.Zero
	for _, l := range inv.Services {
		services = services.Add(l.CommissionAmount)
	}
	products := decimal.Zero
	for _, l := range inv.Products {
		products = products.Add(l.CommissionAmount)
	}
	c := &models.InvoiceCommission{
		ID:                 uuid.New(),
		InvoiceID:          inv.ID,
		StylistID:          inv.StylistID,
		ServicesCommission: services,
		ProductsCommission: products,
		TotalCommission:    services.Add(products),
		PaymentStatus:      models.CommissionPending,
	}
	// Paid in full before finalization.
	if inv.PaymentStatus == models.PaymentStatusPaid && settings.AutoApproveCommission {
		c.PaymentStatus = models.CommissionApproved
		c.ApprovedAt = &now
	}
	return c
}

// Cancel is allowed from any non-terminal status. Payments and the
// commission row are left untouched.
func (s *InvoiceService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Invoice, error) {
	var inv *models.Invoice
	err := s.withInvoiceLock(ctx, id, func(tx *gorm.DB, locked *models.Invoice) error {
		inv = locked
		if inv.Status.IsTerminal() {
			return invalidTransition("invoice is already %s", inv.Status)
		}
		now := s.now()
		inv.Status = models.InvoiceStatusCancelled
		inv.CancelledAt = &now
		inv.CancelReason = reason
		return storage(s.repos.Invoices.Update(ctx, tx, inv), "invoice")
	})
	if err != nil {
		return nil, err
	}
	s.publishStatus(EventInvoiceCancelled, inv)
	return s.GetByID(ctx, id)
}

// Void withdraws an issued invoice. Its number stays consumed.
func (s *InvoiceService) Void(ctx context.Context, id uuid.UUID, reason string) (*models.Invoice, error) {
	var inv *models.Invoice
	err := s.withInvoiceLock(ctx, id, func(tx *gorm.DB, locked *models.Invoice) error {
		inv = locked
		switch inv.Status {
		case models.InvoiceStatusFinalized, models.InvoiceStatusSent:
		case models.InvoiceStatusDraft:
			return invalidTransition("a draft has no number to void; cancel or delete it instead")
		default:
			return invalidTransition("invoice is already %s", inv.Status)
		}
		now := s.now()
		inv.Status = models.InvoiceStatusVoid
		inv.VoidedAt = &now
		inv.CancelReason = reason
		return storage(s.repos.Invoices.Update(ctx, tx, inv), "invoice")
	})
	if err != nil {
		return nil, err
	}
	s.publishStatus(EventInvoiceVoided, inv)
	return s.GetByID(ctx, id)
}

func (s *InvoiceService) MarkSent(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	err := s.withInvoiceLock(ctx, id, func(tx *gorm.DB, inv *models.Invoice) error {
		if inv.Status != models.InvoiceStatusFinalized {
			return invalidTransition("only finalized invoices can be sent, invoice is %s", inv.Status)
		}
		now := s.now()
		inv.Status = models.InvoiceStatusSent
		inv.SentAt = &now
		return storage(s.repos.Invoices.Update(ctx, tx, inv), "invoice")
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// DeleteDraft removes a draft with its lines. Drafts holding payments are
// kept so the payment history stays intact.
func (s *InvoiceService) DeleteDraft(ctx context.Context, id uuid.UUID) error {
	err := s.withInvoiceLock(ctx, id, func(tx *gorm.DB, inv *models.Invoice) error {
		if !inv.IsDraft() {
			return invalidTransition("only drafts can be deleted, invoice is %s", inv.Status)
		}
		if len(inv.Payments) > 0 {
			return invalidTransition("draft has recorded payments")
		}
		return storage(s.repos.Invoices.Delete(ctx, tx, id), "invoice")
	})
	if err != nil {
		return err
	}
	log.Info().Str("invoice_id", id.String()).Msg("draft invoice deleted")
	return nil
}

// WriteOff closes the outstanding balance of an issued invoice as
// uncollectable.
func (s *InvoiceService) WriteOff(ctx context.Context, id uuid.UUID, reason string) (*models.Invoice, error) {
	if reason == "" {
		return nil, validation("a reason is required to write off an invoice")
	}
	err := s.withInvoiceLock(ctx, id, func(tx *gorm.DB, inv *models.Invoice) error {
		if inv.Status != models.InvoiceStatusFinalized && inv.Status != models.InvoiceStatusSent {
			return invalidTransition("cannot write off a %s invoice", inv.Status)
		}
		if inv.PaymentStatus != models.PaymentStatusUnpaid && inv.PaymentStatus != models.PaymentStatusPartial {
			return invalidTransition("cannot write off an invoice that is %s", inv.PaymentStatus)
		}
		inv.PaymentStatus = models.PaymentStatusWrittenOff
		if inv.Notes != "" {
			inv.Notes += "\n"
		}
		inv.Notes += "Written off: " + reason
		return storage(s.repos.Invoices.Update(ctx, tx, inv), "invoice")
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *InvoiceService) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	inv, err := s.repos.Invoices.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("invoice %s not found", id)
		}
		return nil, storage(err, "invoice")
	}
	return inv, nil
}

func (s *InvoiceService) List(ctx context.Context, filter repository.InvoiceFilter) ([]models.Invoice, error) {
	invoices, err := s.repos.Invoices.List(ctx, filter)
	if err != nil {
		return nil, storage(err, "invoices")
	}
	return invoices, nil
}

func (s *InvoiceService) publishStatus(eventType string, inv *models.Invoice) {
	evt := Event{
		Type:      eventType,
		InvoiceID: inv.ID,
		StylistID: inv.StylistID,
		Status:    string(inv.Status),
	}
	if inv.InvoiceNumber != nil {
		evt.InvoiceNumber = *inv.InvoiceNumber
	}
	publish(s.events, evt)
}
