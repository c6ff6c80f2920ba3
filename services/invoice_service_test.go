package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"salonpro-billing/models"
	"salonpro-billing/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) addBooking(status models.BookingStatus, override string) models.Booking {
	start := fixedNow.Add(-2 * time.Hour)
	end := start.Add(time.Hour)
	stylistID := e.stylist.ID
	b := models.Booking{
		ID:                uuid.New(),
		CustomerID:        e.customer.ID,
		StylistID:         &stylistID,
		RequestedDate:     start,
		AssignedStartTime: &start,
		AssignedEndTime:   &end,
		Status:            status,
		PaymentStatus:     models.PaymentStatusUnpaid,
	}
	if override != "" {
		b.CommissionRateOverride = decPtr(override)
	}
	e.store.mu.Lock()
	e.store.bookings[b.ID] = b
	e.store.mu.Unlock()
	return b
}

func (e *testEnv) booking(id uuid.UUID) models.Booking {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return e.store.bookings[id]
}

func (e *testEnv) createDraft(t *testing.T) *models.Invoice {
	t.Helper()
	inv, err := e.invoices.Create(context.Background(), e.scenarioInput())
	require.NoError(t, err)
	return inv
}

func (e *testEnv) createFinalized(t *testing.T) *models.Invoice {
	t.Helper()
	inv, err := e.invoices.Finalize(context.Background(), e.createDraft(t).ID)
	require.NoError(t, err)
	return inv
}

// ── Create ────────────────────────────────────────────────────────────────

func TestCreate_ComputesTotalsAndCommission(t *testing.T) {
	env := newTestEnv(t)

	inv := env.createDraft(t)

	assert.Equal(t, models.InvoiceStatusDraft, inv.Status)
	assert.Nil(t, inv.InvoiceNumber)
	assert.Equal(t, "500", inv.ServicesSubtotal.String())
	assert.Equal(t, "200", inv.ProductsSubtotal.String())
	assert.Equal(t, "700", inv.Subtotal.String())
	assert.Equal(t, "105", inv.TaxAmount.String())
	assert.Equal(t, "805", inv.Total.String())
	assert.Equal(t, "805", inv.AmountDue.String())
	assert.Equal(t, "170", inv.CommissionTotal.String())
	assert.Equal(t, models.PaymentStatusUnpaid, inv.PaymentStatus)

	require.Len(t, inv.Services, 1)
	assert.Equal(t, "Cut & Style", inv.Services[0].ServiceName)
	assert.Equal(t, "150", inv.Services[0].CommissionAmount.String())
	require.Len(t, inv.Products, 1)
	assert.Equal(t, models.ProductTypeRetail, inv.Products[0].ProductType)
	assert.Equal(t, "20", inv.Products[0].CommissionAmount.String())
	assert.False(t, inv.Products[0].DeductedFromStock)
}

func TestCreate_PercentageDiscount(t *testing.T) {
	env := newTestEnv(t)
	in := env.scenarioInput()
	in.Discount = &DiscountInput{Type: models.DiscountPercentage, Value: dec("10")}

	inv, err := env.invoices.Create(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "70", inv.Discount.Amount.String())
	assert.Equal(t, "94.5", inv.TaxAmount.String())
	assert.Equal(t, "724.5", inv.Total.String())
	// Commission is earned on line totals, before the invoice discount.
	assert.Equal(t, "170", inv.CommissionTotal.String())
}

func TestCreate_ServiceProductUsesSalonDefault(t *testing.T) {
	env := newTestEnv(t)
	in := env.scenarioInput()
	in.Products = []ProductLineInput{{ProductID: env.colorTub.ID, Quantity: 1}}

	inv, err := env.invoices.Create(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, inv.Products, 1)
	assert.Equal(t, models.ProductTypeServiceProduct, inv.Products[0].ProductType)
	assert.Equal(t, "0.05", inv.Products[0].CommissionRate.String())
	assert.Equal(t, "4", inv.Products[0].CommissionAmount.String())
}

func TestCreate_FromBookingAppliesOverrideToServices(t *testing.T) {
	env := newTestEnv(t)
	booking := env.addBooking(models.BookingCompleted, "0.20")

	inv, err := env.invoices.Create(context.Background(), CreateInvoiceInput{
		BookingID: &booking.ID,
		Services:  []ServiceLineInput{{ServiceID: env.haircut.ID}},
		Products:  []ProductLineInput{{ProductID: env.shampoo.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, env.customer.ID, inv.CustomerID)
	assert.Equal(t, env.stylist.ID, inv.StylistID)
	assert.True(t, inv.ServiceDate.Equal(*booking.AssignedStartTime))
	assert.Equal(t, 1, inv.Services[0].Quantity)
	assert.Equal(t, "0.2", inv.Services[0].CommissionRate.String())
	assert.Equal(t, "100", inv.Services[0].CommissionAmount.String())
	assert.Equal(t, "0.1", inv.Products[0].CommissionRate.String())
	assert.Equal(t, "120", inv.CommissionTotal.String())
}

func TestCreate_RejectsBookingAlreadyInvoiced(t *testing.T) {
	env := newTestEnv(t)
	booking := env.addBooking(models.BookingCompleted, "")
	in := env.scenarioInput()
	in.BookingID = &booking.ID

	first, err := env.invoices.Create(context.Background(), in)
	require.NoError(t, err)
	_, err = env.invoices.Finalize(context.Background(), first.ID)
	require.NoError(t, err)

	_, err = env.invoices.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCreate_RejectsSecondDraftForBooking(t *testing.T) {
	env := newTestEnv(t)
	booking := env.addBooking(models.BookingCompleted, "")
	in := env.scenarioInput()
	in.BookingID = &booking.ID

	_, err := env.invoices.Create(context.Background(), in)
	require.NoError(t, err)

	_, err = env.invoices.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Len(t, env.store.invoices, 1)
}

func TestCreate_CancelledDraftReleasesBooking(t *testing.T) {
	env := newTestEnv(t)
	booking := env.addBooking(models.BookingCompleted, "")
	in := env.scenarioInput()
	in.BookingID = &booking.ID

	first, err := env.invoices.Create(context.Background(), in)
	require.NoError(t, err)
	_, err = env.invoices.Cancel(context.Background(), first.ID, "wrong services")
	require.NoError(t, err)

	second, err := env.invoices.Create(context.Background(), in)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	require.NotNil(t, second.BookingID)
	assert.Equal(t, booking.ID, *second.BookingID)

	_, err = env.invoices.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCreate_ConcurrentDraftsForBooking(t *testing.T) {
	env := newTestEnv(t)
	booking := env.addBooking(models.BookingCompleted, "")

	const n = 6
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := env.scenarioInput()
			in.BookingID = &booking.ID
			_, errs[i] = env.invoices.Create(context.Background(), in)
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}
	assert.Equal(t, 1, created)
}

func TestCreate_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		mutate func(in *CreateInvoiceInput)
		want   error
	}{
		{"no lines", func(in *CreateInvoiceInput) { in.Services, in.Products = nil, nil }, ErrValidation},
		{"line without service", func(in *CreateInvoiceInput) { in.Services[0].ServiceID = uuid.Nil }, ErrValidation},
		{"line without product", func(in *CreateInvoiceInput) { in.Products[0].ProductID = uuid.Nil }, ErrValidation},
		{"negative quantity", func(in *CreateInvoiceInput) { in.Services[0].Quantity = -1 }, ErrValidation},
		{"negative line discount", func(in *CreateInvoiceInput) { in.Products[0].Discount = dec("-1") }, ErrValidation},
		{"rate above one", func(in *CreateInvoiceInput) { in.Services[0].CommissionRate = decPtr("1.5") }, ErrValidation},
		{"unknown customer", func(in *CreateInvoiceInput) { in.CustomerID = uuid.New() }, ErrNotFound},
		{"unknown service", func(in *CreateInvoiceInput) { in.Services[0].ServiceID = uuid.New() }, ErrNotFound},
		{"missing booking", func(in *CreateInvoiceInput) { id := uuid.New(); in.BookingID = &id }, ErrNotFound},
		{"discount above subtotal", func(in *CreateInvoiceInput) {
			in.Discount = &DiscountInput{Type: models.DiscountFixed, Value: dec("701")}
		}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := env.scenarioInput()
			tt.mutate(&in)
			_, err := env.invoices.Create(context.Background(), in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreate_InactiveProductRejected(t *testing.T) {
	env := newTestEnv(t)
	discontinued := env.shampoo
	discontinued.ID = uuid.New()
	discontinued.IsActive = false
	env.store.products[discontinued.ID] = discontinued

	in := env.scenarioInput()
	in.Products[0].ProductID = discontinued.ID
	_, err := env.invoices.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreate_LineWriteFailureIsStorageError(t *testing.T) {
	env := newTestEnv(t)
	dbErr := errors.New("disk full")
	env.store.failProductLine = dbErr

	_, err := env.invoices.Create(context.Background(), env.scenarioInput())
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, dbErr)
}

// ── Finalize ──────────────────────────────────────────────────────────────

func TestFinalize_SealsInvoice(t *testing.T) {
	env := newTestEnv(t)
	booking := env.addBooking(models.BookingCompleted, "")
	in := env.scenarioInput()
	in.BookingID = &booking.ID
	draft, err := env.invoices.Create(context.Background(), in)
	require.NoError(t, err)

	inv, err := env.invoices.Finalize(context.Background(), draft.ID)
	require.NoError(t, err)

	require.NotNil(t, inv.InvoiceNumber)
	assert.Equal(t, "INV-2025-00001", *inv.InvoiceNumber)
	assert.Equal(t, models.InvoiceStatusFinalized, inv.Status)
	require.NotNil(t, inv.FinalizedAt)
	assert.Empty(t, inv.Warnings)

	require.NotNil(t, inv.Commission)
	assert.Equal(t, models.CommissionPending, inv.Commission.PaymentStatus)
	assert.Equal(t, "150", inv.Commission.ServicesCommission.String())
	assert.Equal(t, "20", inv.Commission.ProductsCommission.String())
	assert.Equal(t, "170", inv.Commission.TotalCommission.String())

	b := env.booking(booking.ID)
	assert.True(t, b.Invoiced)
	require.NotNil(t, b.InvoiceID)
	assert.Equal(t, inv.ID, *b.InvoiceID)

	assert.Equal(t, 3, env.stock(env.shampoo.ID))
	assert.True(t, inv.Products[0].DeductedFromStock)

	customer := env.store.customers[env.customer.ID]
	assert.Equal(t, 1, customer.TotalVisits)
	assert.Equal(t, "805", customer.TotalSpent.String())

	assert.Equal(t, []string{EventInvoiceFinalized}, env.events.types())
}

func TestFinalize_SecondCallFailsAndStockDeductedOnce(t *testing.T) {
	env := newTestEnv(t)
	inv := env.createFinalized(t)

	_, err := env.invoices.Finalize(context.Background(), inv.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 3, env.stock(env.shampoo.ID))
	assert.Equal(t, []int64{1}, env.store.claimed)
}

func TestFinalize_UnknownInvoice(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.invoices.Finalize(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFinalize_ServiceProductsNeverTouchStock(t *testing.T) {
	env := newTestEnv(t)
	in := env.scenarioInput()
	in.Products = []ProductLineInput{{ProductID: env.colorTub.ID, Quantity: 2}}
	draft, err := env.invoices.Create(context.Background(), in)
	require.NoError(t, err)

	_, err = env.invoices.Finalize(context.Background(), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, env.stock(env.colorTub.ID))
}

func TestFinalize_StockDeductionDisabled(t *testing.T) {
	env := newTestEnv(t)
	env.setSettings(func(s *models.Settings) { s.DeductStockOnFinalize = false })

	inv := env.createFinalized(t)
	assert.Equal(t, 5, env.stock(env.shampoo.ID))
	assert.False(t, inv.Products[0].DeductedFromStock)
}

func TestFinalize_InsufficientStockWarns(t *testing.T) {
	env := newTestEnv(t)
	in := env.scenarioInput()
	in.Products[0].Quantity = 6
	draft, err := env.invoices.Create(context.Background(), in)
	require.NoError(t, err)

	inv, err := env.invoices.Finalize(context.Background(), draft.ID)
	require.NoError(t, err)

	assert.Equal(t, models.InvoiceStatusFinalized, inv.Status)
	require.Len(t, inv.Warnings, 1)
	assert.Contains(t, inv.Warnings[0], "Argan Shampoo")
	assert.False(t, inv.Products[0].DeductedFromStock)
	assert.Equal(t, 5, env.stock(env.shampoo.ID))

	env.store.mu.Lock()
	p := env.store.products[env.shampoo.ID]
	p.StockQuantity = 10
	env.store.products[env.shampoo.ID] = p
	env.store.mu.Unlock()

	inv, err = env.invoices.CompleteStockDeduction(context.Background(), draft.ID)
	require.NoError(t, err)
	assert.Empty(t, inv.Warnings)
	assert.True(t, inv.Products[0].DeductedFromStock)
	assert.Equal(t, 4, env.stock(env.shampoo.ID))

	_, err = env.invoices.CompleteStockDeduction(context.Background(), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, env.stock(env.shampoo.ID))
}

func TestFinalize_InsufficientStockBlocks(t *testing.T) {
	env := newTestEnv(t)
	env.setSettings(func(s *models.Settings) { s.BlockOnInsufficientStock = true })
	in := env.scenarioInput()
	in.Products[0].Quantity = 6
	draft, err := env.invoices.Create(context.Background(), in)
	require.NoError(t, err)

	_, err = env.invoices.Finalize(context.Background(), draft.ID)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, env.shampoo.ID, stockErr.ProductID)
	assert.Equal(t, 6, stockErr.Requested)
	assert.Equal(t, 5, env.stock(env.shampoo.ID))
	assert.Empty(t, env.events.types())
}

func TestFinalize_ConcurrentCallsGetDistinctNumbers(t *testing.T) {
	env := newTestEnv(t)
	const n = 8

	ids := make([]uuid.UUID, n)
	for i := range ids {
		in := env.scenarioInput()
		in.Products = nil
		draft, err := env.invoices.Create(context.Background(), in)
		require.NoError(t, err)
		ids[i] = draft.ID
	}

	var mu sync.Mutex
	var numbers []string
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			inv, err := env.invoices.Finalize(context.Background(), id)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers = append(numbers, *inv.InvoiceNumber)
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	sort.Strings(numbers)
	want := make([]string, n)
	for i := range want {
		want[i] = fmt.Sprintf("INV-2025-%05d", i+1)
	}
	assert.Equal(t, want, numbers)
}

func TestFinalize_ConcurrentCallsOnSameInvoice(t *testing.T) {
	env := newTestEnv(t)
	draft := env.createDraft(t)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.invoices.Finalize(context.Background(), draft.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 3, env.stock(env.shampoo.ID))
	assert.Len(t, env.store.claimed, 1)
}

func TestResolvePendingStockDeductions(t *testing.T) {
	env := newTestEnv(t)
	in := env.scenarioInput()
	in.Products[0].Quantity = 6
	draft, err := env.invoices.Create(context.Background(), in)
	require.NoError(t, err)
	_, err = env.invoices.Finalize(context.Background(), draft.ID)
	require.NoError(t, err)

	resolved, err := env.invoices.ResolvePendingStockDeductions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, resolved)

	env.store.mu.Lock()
	p := env.store.products[env.shampoo.ID]
	p.StockQuantity = 6
	env.store.products[env.shampoo.ID] = p
	env.store.mu.Unlock()

	resolved, err = env.invoices.ResolvePendingStockDeductions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
	assert.Equal(t, 0, env.stock(env.shampoo.ID))
}

// ── Status transitions ────────────────────────────────────────────────────

func TestCancel(t *testing.T) {
	env := newTestEnv(t)
	draft := env.createDraft(t)

	inv, err := env.invoices.Cancel(context.Background(), draft.ID, "customer left")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusCancelled, inv.Status)
	assert.Equal(t, "customer left", inv.CancelReason)
	require.NotNil(t, inv.CancelledAt)

	_, err = env.invoices.Cancel(context.Background(), draft.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = env.invoices.Finalize(context.Background(), draft.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, []string{EventInvoiceCancelled}, env.events.types())
}

func TestCancel_FinalizedKeepsCommissionAndPayments(t *testing.T) {
	env := newTestEnv(t)
	inv := env.createFinalized(t)
	_, err := env.invoices.RecordPayment(context.Background(), inv.ID, PaymentInput{Amount: dec("100"), Method: "cash"})
	require.NoError(t, err)

	inv, err = env.invoices.Cancel(context.Background(), inv.ID, "dispute")
	require.NoError(t, err)
	assert.Len(t, inv.Payments, 1)
	require.NotNil(t, inv.Commission)
	assert.Equal(t, models.CommissionPending, inv.Commission.PaymentStatus)
}

func TestVoid(t *testing.T) {
	env := newTestEnv(t)
	draft := env.createDraft(t)

	_, err := env.invoices.Void(context.Background(), draft.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	finalized, err := env.invoices.Finalize(context.Background(), draft.ID)
	require.NoError(t, err)
	inv, err := env.invoices.Void(context.Background(), draft.ID, "wrong customer")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusVoid, inv.Status)
	assert.Equal(t, *finalized.InvoiceNumber, *inv.InvoiceNumber)

	_, err = env.invoices.Void(context.Background(), draft.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// The voided number is never handed out again.
	next := env.createFinalized(t)
	assert.Equal(t, "INV-2025-00002", *next.InvoiceNumber)
}

func TestMarkSent(t *testing.T) {
	env := newTestEnv(t)
	draft := env.createDraft(t)

	_, err := env.invoices.MarkSent(context.Background(), draft.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = env.invoices.Finalize(context.Background(), draft.ID)
	require.NoError(t, err)
	inv, err := env.invoices.MarkSent(context.Background(), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusSent, inv.Status)
	require.NotNil(t, inv.SentAt)

	_, err = env.invoices.MarkSent(context.Background(), draft.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	inv, err = env.invoices.Void(context.Background(), draft.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusVoid, inv.Status)
}

func TestDeleteDraft(t *testing.T) {
	env := newTestEnv(t)
	draft := env.createDraft(t)

	require.NoError(t, env.invoices.DeleteDraft(context.Background(), draft.ID))
	_, err := env.invoices.GetByID(context.Background(), draft.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	finalized := env.createFinalized(t)
	assert.ErrorIs(t, env.invoices.DeleteDraft(context.Background(), finalized.ID), ErrInvalidTransition)

	paid := env.createDraft(t)
	_, err = env.invoices.RecordPayment(context.Background(), paid.ID, PaymentInput{Amount: dec("50"), Method: "cash"})
	require.NoError(t, err)
	assert.ErrorIs(t, env.invoices.DeleteDraft(context.Background(), paid.ID), ErrInvalidTransition)
}

func TestWriteOff(t *testing.T) {
	env := newTestEnv(t)
	inv := env.createFinalized(t)

	_, err := env.invoices.WriteOff(context.Background(), inv.ID, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.invoices.RecordPayment(context.Background(), inv.ID, PaymentInput{Amount: dec("400"), Method: "card"})
	require.NoError(t, err)

	inv, err = env.invoices.WriteOff(context.Background(), inv.ID, "customer unreachable")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusWrittenOff, inv.PaymentStatus)
	assert.Contains(t, inv.Notes, "customer unreachable")

	_, err = env.invoices.RecordPayment(context.Background(), inv.ID, PaymentInput{Amount: dec("405"), Method: "cash"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = env.invoices.WriteOff(context.Background(), inv.ID, "again")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	draft := env.createDraft(t)
	_, err = env.invoices.WriteOff(context.Background(), draft.ID, "too early")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestList_FiltersByStatus(t *testing.T) {
	env := newTestEnv(t)
	env.createDraft(t)
	env.createFinalized(t)

	all, err := env.invoices.List(context.Background(), repository.InvoiceFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	drafts, err := env.invoices.List(context.Background(), repository.InvoiceFilter{Status: models.InvoiceStatusDraft})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, models.InvoiceStatusDraft, drafts[0].Status)
}
