package invoice

import (
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/shopspring/decimal"
)

// LineItemInput is the pricing view of a line item
type LineItemInput struct {
	Quantity  decimal.Decimal
	UnitPrice int64
}

// Totals are the computed money amounts of an invoice, in minor units
type Totals struct {
	Subtotal       int64 `json:"subtotal"`
	DiscountAmount int64 `json:"discount_amount"`
	TaxAmount      int64 `json:"tax_amount"`
	Total          int64 `json:"total"`
}

// LineAmount is round(quantity x unitPrice), rounding half away from zero
func LineAmount(quantity decimal.Decimal, unitPrice int64) int64 {
	return quantity.Mul(decimal.NewFromInt(unitPrice)).Round(0).IntPart()
}

// ComputeTotals derives subtotal, discount, tax and total from the line items.
//
// Each line is rounded before summing. A fixed discount is applied verbatim and
// may exceed the subtotal, in which case the taxable base floors at zero.
func ComputeTotals(items []LineItemInput, discount *Discount, taxRate decimal.Decimal) Totals {
	var subtotal int64
	for _, item := range items {
		subtotal += LineAmount(item.Quantity, item.UnitPrice)
	}

	discountAmount := computeDiscount(subtotal, discount)

	afterDiscount := subtotal - discountAmount
	if afterDiscount < 0 {
		afterDiscount = 0
	}

	var taxAmount int64
	if taxRate.IsPositive() {
		taxAmount = percentOf(afterDiscount, taxRate)
	}

	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		TaxAmount:      taxAmount,
		Total:          afterDiscount + taxAmount,
	}
}

func computeDiscount(subtotal int64, discount *Discount) int64 {
	if discount == nil || !discount.Value.IsPositive() {
		return 0
	}
	switch discount.Type {
	case types.DiscountTypePercentage:
		return percentOf(subtotal, discount.Value)
	case types.DiscountTypeFixed:
		return discount.Value.Round(0).IntPart()
	default:
		return 0
	}
}

// percentOf returns round(amount x percent / 100)
func percentOf(amount int64, percent decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(percent).Shift(-2).Round(0).IntPart()
}
