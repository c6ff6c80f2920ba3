package services

import (
	"salonpro-billing/models"

	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

var (
	hundred              = decimal.NewFromInt(100)
	loyaltyPointsPerUnit = decimal.NewFromInt(10)
)

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// LineAmounts is the computed part of one invoice line.
type LineAmounts struct {
	LineTotal        decimal.Decimal
	CommissionAmount decimal.Decimal
}

// CalculateLine returns unitPrice*quantity - discount, floored at zero, and
// the commission earned on it at rate.
func CalculateLine(unitPrice decimal.Decimal, quantity int, discount, rate decimal.Decimal) LineAmounts {
	total := unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	total = roundMoney(total)
	return LineAmounts{
		LineTotal:        total,
		CommissionAmount: roundMoney(total.Mul(rate)),
	}
}

// DiscountInput is the caller's discount request. Amount is only read for
// promo codes and manual discounts, whose value is decided elsewhere.
type DiscountInput struct {
	Type   models.DiscountType `json:"type"`
	Value  decimal.Decimal     `json:"value"`
	Amount decimal.Decimal     `json:"amount"`
	Reason string              `json:"reason"`
}

// ComputeDiscount converts a discount request into a currency amount
// against subtotal and checks it against the salon's discount policy.
func ComputeDiscount(in *DiscountInput, subtotal decimal.Decimal, settings *models.Settings) (models.Discount, error) {
	if in == nil || in.Type == "" {
		return models.Discount{}, nil
	}
	if in.Value.IsNegative() || in.Amount.IsNegative() {
		return models.Discount{}, validation("discount cannot be negative")
	}

	var amount decimal.Decimal
	switch in.Type {
	case models.DiscountPercentage:
		if in.Value.GreaterThan(hundred) {
			return models.Discount{}, validation("percentage discount cannot exceed 100")
		}
		amount = subtotal.Mul(in.Value).Div(hundred)
	case models.DiscountFixed:
		amount = in.Value
	case models.DiscountLoyaltyPoints:
		amount = in.Value.Div(loyaltyPointsPerUnit)
	case models.DiscountPromoCode, models.DiscountManual:
		amount = in.Amount
	default:
		return models.Discount{}, validation("unknown discount type %q", in.Type)
	}
	amount = roundMoney(amount)

	if settings.RequireDiscountReason && amount.IsPositive() && in.Reason == "" {
		return models.Discount{}, validation("a reason is required for discounts")
	}
	if amount.GreaterThan(subtotal) {
		return models.Discount{}, validation("discount %s exceeds subtotal %s", amount.StringFixed(2), subtotal.StringFixed(2))
	}
	if settings.MaxDiscountPercent.IsPositive() && subtotal.IsPositive() {
		pct := amount.Mul(hundred).Div(subtotal)
		if pct.GreaterThan(settings.MaxDiscountPercent) {
			return models.Discount{}, validation("discount exceeds the maximum of %s%%", settings.MaxDiscountPercent.String())
		}
	}

	return models.Discount{
		Type:   in.Type,
		Value:  in.Value,
		Amount: amount,
		Reason: in.Reason,
	}, nil
}

// InvoiceTotals is the header arithmetic of an invoice.
type InvoiceTotals struct {
	ServicesSubtotal decimal.Decimal
	ProductsSubtotal decimal.Decimal
	Subtotal         decimal.Decimal
	DiscountAmount   decimal.Decimal
	TaxableAmount    decimal.Decimal
	TaxAmount        decimal.Decimal
	Total            decimal.Decimal
	CommissionTotal  decimal.Decimal
}

func SumLines(lines []LineAmounts) (total, commission decimal.Decimal) {
	for _, l := range lines {
		total = total.Add(l.LineTotal)
		commission = commission.Add(l.CommissionAmount)
	}
	return total, commission
}

// ComputeTotals applies discount and tax over the line sums.
func ComputeTotals(serviceLines, productLines []LineAmounts, discountAmount, taxRate decimal.Decimal, taxEnabled bool) InvoiceTotals {
	servicesSubtotal, servicesCommission := SumLines(serviceLines)
	productsSubtotal, productsCommission := SumLines(productLines)
	subtotal := servicesSubtotal.Add(productsSubtotal)

	taxable := subtotal.Sub(discountAmount)
	tax := decimal.Zero
	if taxEnabled {
		tax = roundMoney(taxable.Mul(taxRate))
	}

	return InvoiceTotals{
		ServicesSubtotal: servicesSubtotal,
		ProductsSubtotal: productsSubtotal,
		Subtotal:         subtotal,
		DiscountAmount:   discountAmount,
		TaxableAmount:    taxable,
		TaxAmount:        tax,
		Total:            roundMoney(taxable.Add(tax)),
		CommissionTotal:  servicesCommission.Add(productsCommission),
	}
}
