package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const DefaultStockReconcileSchedule = "@every 15m"

// Scheduler runs the background reconciliation of stock lines that were
// skipped at finalization.
type Scheduler struct {
	cron     *cron.Cron
	invoices *InvoiceService
	schedule string
}

func NewScheduler(invoices *InvoiceService, schedule string) *Scheduler {
	if schedule == "" {
		schedule = DefaultStockReconcileSchedule
	}
	return &Scheduler{
		cron:     cron.New(),
		invoices: invoices,
		schedule: schedule,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.reconcileStock); err != nil {
		return err
	}
	s.cron.Start()
	log.Info().Str("schedule", s.schedule).Msg("stock reconciliation scheduler started")
	return nil
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) reconcileStock() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if _, err := s.invoices.ResolvePendingStockDeductions(ctx); err != nil {
		log.Error().Err(err).Msg("stock reconciliation failed")
	}
}
