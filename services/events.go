package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const (
	EventInvoiceFinalized       = "invoice.finalized"
	EventInvoicePaymentRecorded = "invoice.payment_recorded"
	EventInvoiceCancelled       = "invoice.cancelled"
	EventInvoiceVoided          = "invoice.voided"
	EventCommissionPaid         = "commission.paid"
)

// Event is the envelope published after a billing transaction commits.
type Event struct {
	Type          string           `json:"type"`
	InvoiceID     uuid.UUID        `json:"invoiceId,omitempty"`
	InvoiceNumber string           `json:"invoiceNumber,omitempty"`
	StylistID     uuid.UUID        `json:"stylistId,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Status        string           `json:"status,omitempty"`
	InvoiceIDs    []uuid.UUID      `json:"invoiceIds,omitempty"`
	Reference     string           `json:"reference,omitempty"`
	OccurredAt    time.Time        `json:"occurredAt"`
}

// EventPublisher delivers events best-effort. Errors are logged by the
// caller and never undo the committed operation.
type EventPublisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// KafkaPublisher writes JSON events keyed by invoice id so one invoice's
// events stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(brokers, ",")...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	key := evt.InvoiceID.String()
	if evt.InvoiceID == uuid.Nil && len(evt.InvoiceIDs) > 0 {
		key = evt.InvoiceIDs[0].String()
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(evt.Type)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// publish sends evt on a detached context so a finished request does not
// cancel delivery.
func publish(publisher EventPublisher, evt Event) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := publisher.Publish(ctx, evt); err != nil {
		log.Warn().Err(err).
			Str("event", evt.Type).
			Str("invoice_id", evt.InvoiceID.String()).
			Msg("failed to publish billing event")
	}
}
