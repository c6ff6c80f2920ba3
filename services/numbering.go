package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"salonpro-billing/models"
)

const defaultInvoiceNumberFormat = "{PREFIX}-{YEAR}-{NUMBER}"

// FormatInvoiceNumber renders seq through the salon's numbering template.
func FormatInvoiceNumber(settings *models.Settings, seq int64, at time.Time) string {
	format := settings.InvoiceNumberFormat
	if format == "" {
		format = defaultInvoiceNumberFormat
	}
	padding := settings.InvoiceNumberPadding
	if padding < 1 {
		padding = 1
	}

	r := strings.NewReplacer(
		"{PREFIX}", settings.InvoicePrefix,
		"{YEAR}", strconv.Itoa(at.Year()),
		"{NUMBER}", fmt.Sprintf("%0*d", padding, seq),
	)
	return r.Replace(format)
}
