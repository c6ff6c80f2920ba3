package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"salonpro-billing/models"
	"salonpro-billing/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// memStore backs every stub repository. It hands out copies so services
// cannot mutate stored state without going through a repository call.
type memStore struct {
	mu sync.Mutex

	settings     models.Settings
	invoices     map[uuid.UUID]models.Invoice
	serviceLines map[uuid.UUID][]models.InvoiceServiceLine
	productLines map[uuid.UUID][]models.InvoiceProductLine
	payments     map[uuid.UUID][]models.InvoicePayment
	commissions  map[uuid.UUID]models.InvoiceCommission
	bookings     map[uuid.UUID]models.Booking
	services     map[uuid.UUID]models.Service
	products     map[uuid.UUID]models.Product
	stylists     map[uuid.UUID]models.Stylist
	customers    map[uuid.UUID]models.Customer

	claimed []int64

	// failProductLine makes CreateProductLine fail, to exercise rollback paths.
	failProductLine error
}

func newMemStore() *memStore {
	return &memStore{
		settings:     models.DefaultSettings(),
		invoices:     map[uuid.UUID]models.Invoice{},
		serviceLines: map[uuid.UUID][]models.InvoiceServiceLine{},
		productLines: map[uuid.UUID][]models.InvoiceProductLine{},
		payments:     map[uuid.UUID][]models.InvoicePayment{},
		commissions:  map[uuid.UUID]models.InvoiceCommission{},
		bookings:     map[uuid.UUID]models.Booking{},
		services:     map[uuid.UUID]models.Service{},
		products:     map[uuid.UUID]models.Product{},
		stylists:     map[uuid.UUID]models.Stylist{},
		customers:    map[uuid.UUID]models.Customer{},
	}
}

func (m *memStore) repositories() *repository.Repositories {
	return &repository.Repositories{
		Invoices:    &stubInvoiceRepo{m},
		Commissions: &stubCommissionRepo{m},
		Bookings:    &stubBookingRepo{m},
		Catalog:     &stubCatalogRepo{m},
		Settings:    &stubSettingsRepo{m},
	}
}

func (m *memStore) assemble(inv models.Invoice) models.Invoice {
	inv.Services = append([]models.InvoiceServiceLine(nil), m.serviceLines[inv.ID]...)
	inv.Products = append([]models.InvoiceProductLine(nil), m.productLines[inv.ID]...)
	inv.Payments = append([]models.InvoicePayment(nil), m.payments[inv.ID]...)
	inv.Commission = nil
	if c, ok := m.commissions[inv.ID]; ok {
		inv.Commission = &c
	}
	return inv
}

// ── invoices ──────────────────────────────────────────────────────────────

type stubInvoiceRepo struct{ m *memStore }

func (r *stubInvoiceRepo) Create(_ context.Context, _ *gorm.DB, inv *models.Invoice) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	h := *inv
	h.Services, h.Products, h.Payments, h.Commission = nil, nil, nil, nil
	r.m.invoices[inv.ID] = h
	return nil
}

func (r *stubInvoiceRepo) CreateServiceLine(_ context.Context, _ *gorm.DB, line *models.InvoiceServiceLine) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.serviceLines[line.InvoiceID] = append(r.m.serviceLines[line.InvoiceID], *line)
	return nil
}

func (r *stubInvoiceRepo) CreateProductLine(_ context.Context, _ *gorm.DB, line *models.InvoiceProductLine) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failProductLine != nil {
		return r.m.failProductLine
	}
	r.m.productLines[line.InvoiceID] = append(r.m.productLines[line.InvoiceID], *line)
	return nil
}

func (r *stubInvoiceRepo) FindByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*models.Invoice, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	inv, ok := r.m.invoices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := r.m.assemble(inv)
	return &out, nil
}

func (r *stubInvoiceRepo) FindLiveByBooking(_ context.Context, _ *gorm.DB, bookingID uuid.UUID) (*models.Invoice, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, inv := range r.m.invoices {
		if inv.BookingID == nil || *inv.BookingID != bookingID {
			continue
		}
		if inv.Status == models.InvoiceStatusCancelled || inv.Status == models.InvoiceStatusVoid {
			continue
		}
		out := inv
		return &out, nil
	}
	return nil, nil
}

func (r *stubInvoiceRepo) LockByID(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.invoices[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *stubInvoiceRepo) Update(_ context.Context, _ *gorm.DB, inv *models.Invoice) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.invoices[inv.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	h := *inv
	h.Services, h.Products, h.Payments, h.Commission, h.Warnings = nil, nil, nil, nil, nil
	r.m.invoices[inv.ID] = h
	return nil
}

func (r *stubInvoiceRepo) Delete(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.serviceLines, id)
	delete(r.m.productLines, id)
	delete(r.m.invoices, id)
	return nil
}

func (r *stubInvoiceRepo) MarkProductLineDeducted(_ context.Context, _ *gorm.DB, lineID uuid.UUID, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for invID, lines := range r.m.productLines {
		for i := range lines {
			if lines[i].ID == lineID && !lines[i].DeductedFromStock {
				lines[i].DeductedFromStock = true
				lines[i].DeductedAt = &at
				r.m.productLines[invID] = lines
			}
		}
	}
	return nil
}

func (r *stubInvoiceRepo) AddPayment(_ context.Context, _ *gorm.DB, p *models.InvoicePayment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.payments[p.InvoiceID] = append(r.m.payments[p.InvoiceID], *p)
	return nil
}

func (r *stubInvoiceRepo) ListPendingStockDeductions(_ context.Context) ([]uuid.UUID, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var ids []uuid.UUID
	for id, inv := range r.m.invoices {
		if inv.Status != models.InvoiceStatusFinalized && inv.Status != models.InvoiceStatusSent {
			continue
		}
		for _, l := range r.m.productLines[id] {
			if l.ProductType == models.ProductTypeRetail && !l.DeductedFromStock {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids, nil
}

func (r *stubInvoiceRepo) List(_ context.Context, f repository.InvoiceFilter) ([]models.Invoice, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.Invoice
	for _, inv := range r.m.invoices {
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		if f.StylistID != nil && inv.StylistID != *f.StylistID {
			continue
		}
		if f.CustomerID != nil && inv.CustomerID != *f.CustomerID {
			continue
		}
		out = append(out, r.m.assemble(inv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceDate.After(out[j].InvoiceDate) })
	return out, nil
}

// ── commissions ───────────────────────────────────────────────────────────

type stubCommissionRepo struct{ m *memStore }

func (r *stubCommissionRepo) Create(_ context.Context, _ *gorm.DB, c *models.InvoiceCommission) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, exists := r.m.commissions[c.InvoiceID]; exists {
		return gorm.ErrDuplicatedKey
	}
	r.m.commissions[c.InvoiceID] = *c
	return nil
}

func (r *stubCommissionRepo) FindByInvoiceID(_ context.Context, _ *gorm.DB, invoiceID uuid.UUID) (*models.InvoiceCommission, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.commissions[invoiceID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r *stubCommissionRepo) LockByInvoiceIDs(_ context.Context, _ *gorm.DB, invoiceIDs []uuid.UUID) ([]models.InvoiceCommission, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var rows []models.InvoiceCommission
	for _, id := range invoiceIDs {
		if c, ok := r.m.commissions[id]; ok {
			rows = append(rows, c)
		}
	}
	return rows, nil
}

func (r *stubCommissionRepo) Update(_ context.Context, _ *gorm.DB, c *models.InvoiceCommission) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.commissions[c.InvoiceID] = *c
	return nil
}

func (r *stubCommissionRepo) MarkPaid(_ context.Context, _ *gorm.DB, invoiceIDs []uuid.UUID, reference string, paidAt time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, id := range invoiceIDs {
		c := r.m.commissions[id]
		c.PaymentStatus = models.CommissionPaid
		c.PaymentReference = reference
		c.PaymentDate = &paidAt
		r.m.commissions[id] = c

		inv := r.m.invoices[id]
		inv.CommissionPaid = true
		inv.CommissionPaidDate = &paidAt
		r.m.invoices[id] = inv
	}
	return nil
}

func (r *stubCommissionRepo) ListForStylist(_ context.Context, stylistID uuid.UUID, from, to time.Time) ([]models.Invoice, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.Invoice
	for _, inv := range r.m.invoices {
		if inv.StylistID != stylistID {
			continue
		}
		if inv.Status != models.InvoiceStatusFinalized && inv.Status != models.InvoiceStatusSent {
			continue
		}
		if inv.ServiceDate.Before(from) || !inv.ServiceDate.Before(to) {
			continue
		}
		out = append(out, r.m.assemble(inv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceDate.Before(out[j].ServiceDate) })
	return out, nil
}

// ── bookings ──────────────────────────────────────────────────────────────

type stubBookingRepo struct{ m *memStore }

func (r *stubBookingRepo) withCustomer(b models.Booking) models.Booking {
	if c, ok := r.m.customers[b.CustomerID]; ok {
		b.Customer = &c
	}
	return b
}

func (r *stubBookingRepo) FindByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*models.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	b, ok := r.m.bookings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	b = r.withCustomer(b)
	return &b, nil
}

// ListActiveAssigned returns every assigned booking of the stylist and
// leaves the overlap rule to the caller.
func (r *stubBookingRepo) ListActiveAssigned(_ context.Context, _ *gorm.DB, stylistID uuid.UUID, _, _ time.Time) ([]models.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.Booking
	for _, b := range r.m.bookings {
		if b.StylistID == nil || *b.StylistID != stylistID {
			continue
		}
		if b.AssignedStartTime == nil || b.AssignedEndTime == nil {
			continue
		}
		out = append(out, r.withCustomer(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedStartTime.Before(*out[j].AssignedStartTime) })
	return out, nil
}

func (r *stubBookingRepo) Update(_ context.Context, _ *gorm.DB, b *models.Booking) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored := *b
	stored.Customer = nil
	r.m.bookings[b.ID] = stored
	return nil
}

func (r *stubBookingRepo) MarkInvoiced(_ context.Context, _ *gorm.DB, bookingID, invoiceID uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	b, ok := r.m.bookings[bookingID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	b.Invoiced = true
	b.InvoiceID = &invoiceID
	r.m.bookings[bookingID] = b
	return nil
}

func (r *stubBookingRepo) UpdatePaymentStatus(_ context.Context, _ *gorm.DB, bookingID uuid.UUID, status models.PaymentStatus, paidAt time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	b, ok := r.m.bookings[bookingID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	b.PaymentStatus = status
	b.PaidAt = &paidAt
	r.m.bookings[bookingID] = b
	return nil
}

// ── catalog ───────────────────────────────────────────────────────────────

type stubCatalogRepo struct{ m *memStore }

func (r *stubCatalogRepo) FindService(_ context.Context, _ *gorm.DB, id uuid.UUID) (*models.Service, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.services[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

func (r *stubCatalogRepo) FindProduct(_ context.Context, _ *gorm.DB, id uuid.UUID) (*models.Product, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *stubCatalogRepo) FindStylist(_ context.Context, _ *gorm.DB, id uuid.UUID) (*models.Stylist, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.stylists[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

func (r *stubCatalogRepo) LockStylist(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.stylists[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *stubCatalogRepo) FindCustomer(_ context.Context, _ *gorm.DB, id uuid.UUID) (*models.Customer, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.customers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r *stubCatalogRepo) DecrementStock(_ context.Context, _ *gorm.DB, productID uuid.UUID, qty int, allowNegative bool) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.products[productID]
	if !ok {
		return false, nil
	}
	if !allowNegative && p.StockQuantity < qty {
		return false, nil
	}
	p.StockQuantity -= qty
	r.m.products[productID] = p
	return true, nil
}

func (r *stubCatalogRepo) RecordCustomerVisit(_ context.Context, _ *gorm.DB, customerID uuid.UUID, spent decimal.Decimal, visitedAt time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.customers[customerID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.TotalVisits++
	c.TotalSpent = c.TotalSpent.Add(spent)
	c.LastVisit = &visitedAt
	r.m.customers[customerID] = c
	return nil
}

// ── settings ──────────────────────────────────────────────────────────────

type stubSettingsRepo struct{ m *memStore }

func (r *stubSettingsRepo) Get(_ context.Context, _ *gorm.DB) (*models.Settings, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s := r.m.settings
	return &s, nil
}

func (r *stubSettingsRepo) ClaimInvoiceNumber(_ context.Context, _ *gorm.DB) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n := r.m.settings.InvoiceNextNumber
	r.m.settings.InvoiceNextNumber++
	r.m.claimed = append(r.m.claimed, n)
	return n, nil
}

// ── fixtures ──────────────────────────────────────────────────────────────

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingNotifier struct {
	mu       sync.Mutex
	receipts []Receipt
}

func (n *recordingNotifier) SendReceipt(_ context.Context, r Receipt) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts = append(n.receipts, r)
	return nil
}

var fixedNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	store       *memStore
	events      *recordingPublisher
	notifier    *recordingNotifier
	invoices    *InvoiceService
	commissions *CommissionService
	bookings    *BookingService

	customer models.Customer
	stylist  models.Stylist
	haircut  models.Service // price 500, rate 0.30
	shampoo  models.Product // retail, price 100, rate 0.10, stock 5
	colorTub models.Product // service product, price 80, no rate
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	repos := store.repositories()
	events := &recordingPublisher{}
	notifier := &recordingNotifier{}

	env := &testEnv{
		store:       store,
		events:      events,
		notifier:    notifier,
		invoices:    NewInvoiceService(repos, NewLocalLocker(), events, notifier),
		commissions: NewCommissionService(repos, events),
		bookings:    NewBookingService(repos, NewLocalLocker()),
	}
	env.invoices.now = func() time.Time { return fixedNow }
	env.commissions.now = func() time.Time { return fixedNow }

	env.customer = models.Customer{ID: uuid.New(), Name: "Thandi Mokoena", Phone: "+27821234567", IsActive: true}
	env.stylist = models.Stylist{ID: uuid.New(), Name: "Lerato", IsActive: true}
	env.haircut = models.Service{ID: uuid.New(), Name: "Cut & Style", Price: dec("500"), CommissionRate: decPtr("0.30"), IsActive: true}
	env.shampoo = models.Product{ID: uuid.New(), Name: "Argan Shampoo", Price: dec("100"), StockQuantity: 5, CommissionRate: decPtr("0.10"), IsActive: true}
	env.colorTub = models.Product{ID: uuid.New(), Name: "Colour Tube", Price: dec("80"), StockQuantity: 10, IsServiceProduct: true, IsActive: true}

	store.customers[env.customer.ID] = env.customer
	store.stylists[env.stylist.ID] = env.stylist
	store.services[env.haircut.ID] = env.haircut
	store.products[env.shampoo.ID] = env.shampoo
	store.products[env.colorTub.ID] = env.colorTub
	return env
}

// scenarioInput is one haircut and two bottles of shampoo.
func (e *testEnv) scenarioInput() CreateInvoiceInput {
	return CreateInvoiceInput{
		CustomerID:  e.customer.ID,
		StylistID:   e.stylist.ID,
		ServiceDate: fixedNow,
		Services:    []ServiceLineInput{{ServiceID: e.haircut.ID, Quantity: 1}},
		Products:    []ProductLineInput{{ProductID: e.shampoo.ID, Quantity: 2}},
	}
}

func (e *testEnv) stock(id uuid.UUID) int {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return e.store.products[id].StockQuantity
}

func (e *testEnv) setSettings(fn func(s *models.Settings)) {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	fn(&e.store.settings)
}

var (
	_ repository.InvoiceRepository    = (*stubInvoiceRepo)(nil)
	_ repository.CommissionRepository = (*stubCommissionRepo)(nil)
	_ repository.BookingRepository    = (*stubBookingRepo)(nil)
	_ repository.CatalogRepository    = (*stubCatalogRepo)(nil)
	_ repository.SettingsRepository   = (*stubSettingsRepo)(nil)
)
