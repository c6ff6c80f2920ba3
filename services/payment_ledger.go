package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"salonpro-billing/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentInput struct {
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method" binding:"required"`
	Reference   *string         `json:"reference"`
	Notes       string          `json:"notes"`
	ProcessedBy uuid.UUID       `json:"-"`
	PaidAt      *time.Time      `json:"paidAt"`
}

// NextPaymentStatus derives the payment status after a ledger entry.
// A refund that brings the paid amount to zero or below reads as refunded.
func NextPaymentStatus(amountPaid, total decimal.Decimal, refund bool) models.PaymentStatus {
	switch {
	case refund && !amountPaid.IsPositive():
		return models.PaymentStatusRefunded
	case amountPaid.GreaterThanOrEqual(total):
		return models.PaymentStatusPaid
	case amountPaid.IsPositive():
		return models.PaymentStatusPartial
	default:
		return models.PaymentStatusUnpaid
	}
}

// RecordPayment appends a ledger entry and recomputes paid, due and status
// under the invoice lock.
func (s *InvoiceService) RecordPayment(ctx context.Context, id uuid.UUID, in PaymentInput) (*models.Invoice, error) {
	in.Method = strings.ToLower(strings.TrimSpace(in.Method))
	if in.Method == "" {
		return nil, validation("payment method is required")
	}
	if in.Amount.IsZero() {
		return nil, validation("payment amount cannot be zero")
	}
	switch in.Method {
	case models.PaymentMethodRefund, models.PaymentMethodAdjustment:
		if in.Amount.IsPositive() {
			return nil, validation("a %s is recorded as a negative amount", in.Method)
		}
	default:
		if in.Amount.IsNegative() {
			return nil, validation("a negative amount must use the refund or adjustment method")
		}
	}
	in.Amount = roundMoney(in.Amount)

	var inv *models.Invoice
	var becamePaid bool
	err := s.withInvoiceLock(ctx, id, func(tx *gorm.DB, locked *models.Invoice) error {
		inv = locked
		if inv.Status.IsTerminal() {
			return invalidTransition("cannot record a payment on a %s invoice", inv.Status)
		}
		if inv.PaymentStatus == models.PaymentStatusWrittenOff {
			return invalidTransition("invoice has been written off")
		}
		settings, err := s.repos.Settings.Get(ctx, tx)
		if err != nil {
			return storage(err, "settings")
		}
		if in.Amount.IsPositive() && !settings.AllowOverpayment && in.Amount.GreaterThan(inv.AmountDue) {
			return validation("payment %s exceeds amount due %s", in.Amount.StringFixed(2), inv.AmountDue.StringFixed(2))
		}

		newPaid := inv.AmountPaid.Add(in.Amount)
		if newPaid.IsNegative() {
			return validation("refund exceeds the amount paid")
		}

		now := s.now()
		paidAt := now
		if in.PaidAt != nil {
			paidAt = *in.PaidAt
		}
		payment := &models.InvoicePayment{
			ID:          uuid.New(),
			InvoiceID:   inv.ID,
			Amount:      in.Amount,
			Method:      in.Method,
			Reference:   in.Reference,
			Notes:       in.Notes,
			ProcessedBy: in.ProcessedBy,
			PaidAt:      paidAt,
		}
		if err := s.repos.Invoices.AddPayment(ctx, tx, payment); err != nil {
			return storage(err, "invoice payment")
		}

		previous := inv.PaymentStatus
		refund := in.Amount.IsNegative() && in.Method == models.PaymentMethodRefund
		inv.AmountPaid = newPaid
		inv.AmountDue = inv.Total.Sub(newPaid)
		inv.PaymentStatus = NextPaymentStatus(newPaid, inv.Total, refund)
		if err := s.repos.Invoices.Update(ctx, tx, inv); err != nil {
			return storage(err, "invoice")
		}

		becamePaid = inv.PaymentStatus == models.PaymentStatusPaid && previous != models.PaymentStatusPaid
		if !becamePaid {
			return nil
		}
		if settings.AutoApproveCommission {
			if err := s.autoApproveCommission(ctx, tx, inv.ID, now); err != nil {
				return err
			}
		}
		if inv.BookingID != nil {
			if err := s.repos.Bookings.UpdatePaymentStatus(ctx, tx, *inv.BookingID, models.PaymentStatusPaid, now); err != nil {
				return storage(err, "booking")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("invoice_id", id.String()).
		Str("amount", in.Amount.StringFixed(2)).
		Str("payment_status", string(inv.PaymentStatus)).
		Msg("payment recorded")
	amount := in.Amount
	evt := Event{
		Type:      EventInvoicePaymentRecorded,
		InvoiceID: id,
		StylistID: inv.StylistID,
		Amount:    &amount,
		Status:    string(inv.PaymentStatus),
	}
	if inv.InvoiceNumber != nil {
		evt.InvoiceNumber = *inv.InvoiceNumber
	}
	publish(s.events, evt)
	if becamePaid {
		s.sendReceipt(inv)
	}

	return s.GetByID(ctx, id)
}

// autoApproveCommission moves a pending or approved commission to approved.
// Drafts have no commission row yet; finalize picks up the paid status.
func (s *InvoiceService) autoApproveCommission(ctx context.Context, tx *gorm.DB, invoiceID uuid.UUID, at time.Time) error {
	c, err := s.repos.Commissions.FindByInvoiceID(ctx, tx, invoiceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return storage(err, "invoice commission")
	}
	if c.PaymentStatus != models.CommissionPending && c.PaymentStatus != models.CommissionApproved {
		return nil
	}
	c.PaymentStatus = models.CommissionApproved
	c.ApprovedAt = &at
	return storage(s.repos.Commissions.Update(ctx, tx, c), "invoice commission")
}

func (s *InvoiceService) sendReceipt(inv *models.Invoice) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	customer, err := s.repos.Catalog.FindCustomer(ctx, nil, inv.CustomerID)
	if err != nil {
		log.Warn().Err(err).Str("invoice_id", inv.ID.String()).Msg("receipt skipped, customer lookup failed")
		return
	}
	if customer.Phone == "" {
		return
	}
	receipt := Receipt{
		CustomerName: customer.Name,
		Phone:        customer.Phone,
		AmountPaid:   inv.AmountPaid,
		AmountDue:    inv.AmountDue,
	}
	if inv.InvoiceNumber != nil {
		receipt.InvoiceNumber = *inv.InvoiceNumber
	}
	if err := s.notifier.SendReceipt(ctx, receipt); err != nil {
		log.Warn().Err(err).Str("invoice_id", inv.ID.String()).Msg("failed to send payment receipt")
	}
}
