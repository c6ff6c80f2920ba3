package services

import (
	"context"
	"fmt"

	"salonpro-billing/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// deductStock decrements stock for every retail line not yet flagged and
// flags it. Lines short on stock are skipped with a warning unless the
// salon blocks on insufficient stock.
func (s *InvoiceService) deductStock(ctx context.Context, tx *gorm.DB, settings *models.Settings, inv *models.Invoice) ([]string, error) {
	var warnings []string
	for _, line := range inv.PendingStockLines() {
		applied, err := s.repos.Catalog.DecrementStock(ctx, tx, line.ProductID, line.Quantity, settings.AllowNegativeStock)
		if err != nil {
			return nil, storage(err, "product stock")
		}
		if !applied {
			if settings.BlockOnInsufficientStock {
				return nil, &InsufficientStockError{
					ProductID:   line.ProductID,
					ProductName: line.ProductName,
					Requested:   line.Quantity,
				}
			}
			log.Warn().
				Str("invoice_id", inv.ID.String()).
				Str("product_id", line.ProductID.String()).
				Int("quantity", line.Quantity).
				Msg("insufficient stock, line left for manual deduction")
			warnings = append(warnings, fmt.Sprintf("insufficient stock for %s: %d not deducted", line.ProductName, line.Quantity))
			continue
		}

		now := s.now()
		if err := s.repos.Invoices.MarkProductLineDeducted(ctx, tx, line.ID, now); err != nil {
			return nil, storage(err, "invoice product line")
		}
		line.DeductedFromStock = true
		line.DeductedAt = &now
	}
	return warnings, nil
}

// CompleteStockDeduction re-runs the deduction step for an issued invoice.
// Lines already flagged are never decremented again.
func (s *InvoiceService) CompleteStockDeduction(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var warnings []string
	err := s.withInvoiceLock(ctx, id, func(tx *gorm.DB, inv *models.Invoice) error {
		if inv.Status != models.InvoiceStatusFinalized && inv.Status != models.InvoiceStatusSent {
			return invalidTransition("stock is only deducted for issued invoices, invoice is %s", inv.Status)
		}
		settings, err := s.repos.Settings.Get(ctx, tx)
		if err != nil {
			return storage(err, "settings")
		}
		warnings, err = s.deductStock(ctx, tx, settings, inv)
		return err
	})
	if err != nil {
		return nil, err
	}
	out, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out.Warnings = warnings
	return out, nil
}

// ResolvePendingStockDeductions retries every issued invoice that still has
// un-deducted retail lines and returns how many were fully resolved.
func (s *InvoiceService) ResolvePendingStockDeductions(ctx context.Context) (int, error) {
	ids, err := s.repos.Invoices.ListPendingStockDeductions(ctx)
	if err != nil {
		return 0, storage(err, "pending stock deductions")
	}

	resolved := 0
	for _, id := range ids {
		inv, err := s.CompleteStockDeduction(ctx, id)
		if err != nil {
			log.Error().Err(err).Str("invoice_id", id.String()).Msg("stock deduction retry failed")
			continue
		}
		if len(inv.Warnings) == 0 {
			resolved++
		}
	}
	if len(ids) > 0 {
		log.Info().Int("pending", len(ids)).Int("resolved", resolved).Msg("stock reconciliation finished")
	}
	return resolved, nil
}
