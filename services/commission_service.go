package services

import (
	"context"
	"time"

	"salonpro-billing/models"
	"salonpro-billing/repository"
	"salonpro-billing/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CommissionService struct {
	repos  *repository.Repositories
	events EventPublisher
	now    func() time.Time
}

func NewCommissionService(repos *repository.Repositories, events EventPublisher) *CommissionService {
	if events == nil {
		events = NopPublisher{}
	}
	return &CommissionService{repos: repos, events: events, now: time.Now}
}

// CommissionReportLine is one invoice in a stylist's commission report.
type CommissionReportLine struct {
	InvoiceID          uuid.UUID               `json:"invoiceId"`
	InvoiceNumber      string                  `json:"invoiceNumber"`
	ServiceDate        time.Time               `json:"serviceDate"`
	Total              decimal.Decimal         `json:"total"`
	ServicesCommission decimal.Decimal         `json:"servicesCommission"`
	ProductsCommission decimal.Decimal         `json:"productsCommission"`
	TotalCommission    decimal.Decimal         `json:"totalCommission"`
	Status             models.CommissionStatus `json:"status"`
}

type CommissionReport struct {
	StylistID          uuid.UUID              `json:"stylistId"`
	StylistName        string                 `json:"stylistName"`
	StartDate          time.Time              `json:"startDate"`
	EndDate            time.Time              `json:"endDate"`
	Days               int                    `json:"days"`
	InvoiceCount       int                    `json:"invoiceCount"`
	TotalSales         decimal.Decimal        `json:"totalSales"`
	ServicesCommission decimal.Decimal        `json:"servicesCommission"`
	ProductsCommission decimal.Decimal        `json:"productsCommission"`
	TotalCommission    decimal.Decimal        `json:"totalCommission"`
	PaidCommission     decimal.Decimal        `json:"paidCommission"`
	PendingCommission  decimal.Decimal        `json:"pendingCommission"`
	Lines              []CommissionReportLine `json:"lines"`
}

// GetReport aggregates the commissions of finalized and sent invoices whose
// service date falls on any day from start through end.
func (s *CommissionService) GetReport(ctx context.Context, stylistID uuid.UUID, start, end time.Time) (*CommissionReport, error) {
	from, to := utils.DayRange(start, end)
	if !to.After(from) {
		return nil, validation("end date is before start date")
	}

	stylist, err := s.repos.Catalog.FindStylist(ctx, nil, stylistID)
	if err != nil {
		return nil, storage(err, "stylist")
	}
	invoices, err := s.repos.Commissions.ListForStylist(ctx, stylistID, from, to)
	if err != nil {
		return nil, storage(err, "commissions")
	}

	report := &CommissionReport{
		StylistID:   stylistID,
		StylistName: stylist.Name,
		StartDate:   from,
		EndDate:     utils.BeginningOfDay(end),
		Days:        utils.DaysBetween(from, end) + 1,
		Lines:       make([]CommissionReportLine, 0, len(invoices)),
	}
	for _, inv := range invoices {
		report.InvoiceCount++
		report.TotalSales = report.TotalSales.Add(inv.Total)

		c := inv.Commission
		if c == nil || c.PaymentStatus == models.CommissionCancelled {
			continue
		}
		line := CommissionReportLine{
			InvoiceID:          inv.ID,
			ServiceDate:        inv.ServiceDate,
			Total:              inv.Total,
			ServicesCommission: c.ServicesCommission,
			ProductsCommission: c.ProductsCommission,
			TotalCommission:    c.TotalCommission,
			Status:             c.PaymentStatus,
		}
		if inv.InvoiceNumber != nil {
			line.InvoiceNumber = *inv.InvoiceNumber
		}
		report.Lines = append(report.Lines, line)

		report.ServicesCommission = report.ServicesCommission.Add(c.ServicesCommission)
		report.ProductsCommission = report.ProductsCommission.Add(c.ProductsCommission)
		report.TotalCommission = report.TotalCommission.Add(c.TotalCommission)
		if c.PaymentStatus == models.CommissionPaid {
			report.PaidCommission = report.PaidCommission.Add(c.TotalCommission)
		} else {
			report.PendingCommission = report.PendingCommission.Add(c.TotalCommission)
		}
	}
	return report, nil
}

// lockBatch row-locks the commissions of every named invoice and fails
// when any of them has none.
func (s *CommissionService) lockBatch(ctx context.Context, tx *gorm.DB, invoiceIDs []uuid.UUID) ([]models.InvoiceCommission, error) {
	rows, err := s.repos.Commissions.LockByInvoiceIDs(ctx, tx, invoiceIDs)
	if err != nil {
		return nil, storage(err, "invoice commissions")
	}
	found := make(map[uuid.UUID]bool, len(rows))
	for _, r := range rows {
		found[r.InvoiceID] = true
	}
	for _, id := range invoiceIDs {
		if !found[id] {
			return nil, notFound("no commission for invoice %s", id)
		}
	}
	return rows, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Approve moves pending commissions to approved. Already approved rows are
// left as they are.
func (s *CommissionService) Approve(ctx context.Context, invoiceIDs []uuid.UUID, approverID uuid.UUID) error {
	invoiceIDs = uniqueIDs(invoiceIDs)
	if len(invoiceIDs) == 0 {
		return validation("no invoices given")
	}
	return runTx(ctx, s.repos.DB, func(tx *gorm.DB) error {
		rows, err := s.lockBatch(ctx, tx, invoiceIDs)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if r.PaymentStatus == models.CommissionPaid || r.PaymentStatus == models.CommissionCancelled {
				return invalidTransition("commission for invoice %s is %s", r.InvoiceID, r.PaymentStatus)
			}
		}
		now := s.now()
		for i := range rows {
			r := &rows[i]
			if r.PaymentStatus == models.CommissionApproved {
				continue
			}
			r.PaymentStatus = models.CommissionApproved
			r.ApprovedBy = &approverID
			r.ApprovedAt = &now
			if err := s.repos.Commissions.Update(ctx, tx, r); err != nil {
				return storage(err, "invoice commission")
			}
		}
		return nil
	})
}

// MarkPaid settles a payout batch. Either every named commission is marked
// paid or none is.
func (s *CommissionService) MarkPaid(ctx context.Context, invoiceIDs []uuid.UUID, reference string, paidAt time.Time) error {
	invoiceIDs = uniqueIDs(invoiceIDs)
	if len(invoiceIDs) == 0 {
		return validation("no invoices given")
	}
	if reference == "" {
		return validation("payment reference is required")
	}
	if paidAt.IsZero() {
		paidAt = s.now()
	}

	err := runTx(ctx, s.repos.DB, func(tx *gorm.DB) error {
		rows, err := s.lockBatch(ctx, tx, invoiceIDs)
		if err != nil {
			return err
		}
		for _, r := range rows {
			switch r.PaymentStatus {
			case models.CommissionCancelled:
				return invalidTransition("commission for invoice %s is cancelled", r.InvoiceID)
			case models.CommissionPaid:
				return invalidTransition("commission for invoice %s is already paid", r.InvoiceID)
			}
		}
		return storage(s.repos.Commissions.MarkPaid(ctx, tx, invoiceIDs, reference, paidAt), "invoice commissions")
	})
	if err != nil {
		return err
	}

	log.Info().Int("invoices", len(invoiceIDs)).Str("reference", reference).Msg("commissions marked paid")
	publish(s.events, Event{
		Type:       EventCommissionPaid,
		InvoiceIDs: invoiceIDs,
		Reference:  reference,
		OccurredAt: paidAt,
	})
	return nil
}
