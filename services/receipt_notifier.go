package services

import (
	"context"
	"fmt"
	"strings"

	"salonpro-billing/utils"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Receipt is what the customer is told once their invoice is settled.
type Receipt struct {
	CustomerName  string
	Phone         string
	InvoiceNumber string
	AmountPaid    decimal.Decimal
	AmountDue     decimal.Decimal
}

func (r Receipt) Message() string {
	msg := fmt.Sprintf("Hi %s, thank you for your payment of %s on invoice %s.",
		r.CustomerName, r.AmountPaid.StringFixed(2), r.InvoiceNumber)
	if r.AmountDue.IsNegative() {
		msg += fmt.Sprintf(" A credit of %s is on your account.", r.AmountDue.Neg().StringFixed(2))
	}
	return msg
}

type Notifier interface {
	SendReceipt(ctx context.Context, r Receipt) error
}

type NopNotifier struct{}

func (NopNotifier) SendReceipt(context.Context, Receipt) error { return nil }

type TwilioConfig struct {
	AccountSID     string
	AuthToken      string
	PhoneNumber    string
	WhatsAppNumber string
}

// TwilioNotifier sends receipts over WhatsApp when the phone is in E.164
// form and over SMS otherwise.
type TwilioNotifier struct {
	client *twilio.RestClient
	cfg    TwilioConfig
}

func NewTwilioNotifier(cfg TwilioConfig) *TwilioNotifier {
	return &TwilioNotifier{
		cfg: cfg,
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		}),
	}
}

func (n *TwilioNotifier) SendReceipt(ctx context.Context, r Receipt) error {
	to, from, channel, err := receiptRoute(r.Phone, n.cfg)
	if err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(r.Message())

	resp, err := n.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("send %s receipt: %w", channel, err)
	}
	ev := log.Info().Str("channel", channel).Str("invoice_number", r.InvoiceNumber)
	if resp.Sid != nil {
		ev = ev.Str("sid", *resp.Sid)
	}
	ev.Msg("payment receipt sent")
	return nil
}

// receiptRoute picks the channel and addresses for a receipt. The number is
// sent in its cleaned form.
func receiptRoute(phone string, cfg TwilioConfig) (to, from, channel string, err error) {
	cleaned, ok := utils.NormalizePhone(phone)
	if !ok {
		return "", "", "", fmt.Errorf("invalid phone number %q", phone)
	}
	if strings.HasPrefix(cleaned, "+") && cfg.WhatsAppNumber != "" {
		return "whatsapp:" + cleaned, "whatsapp:" + cfg.WhatsAppNumber, "whatsapp", nil
	}
	return cleaned, cfg.PhoneNumber, "sms", nil
}
