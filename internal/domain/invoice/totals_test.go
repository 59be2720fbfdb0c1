package invoice

import (
	"math/rand"
	"testing"

	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func qty(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name     string
		items    []LineItemInput
		discount *Discount
		taxRate  decimal.Decimal
		expected Totals
	}{
		{
			name:     "no items",
			expected: Totals{},
		},
		{
			name: "single item no discount no tax",
			items: []LineItemInput{
				{Quantity: qty("1"), UnitPrice: 10000},
			},
			expected: Totals{Subtotal: 10000, Total: 10000},
		},
		{
			name: "each line rounded before summing",
			items: []LineItemInput{
				{Quantity: qty("1.5"), UnitPrice: 1},
				{Quantity: qty("1.5"), UnitPrice: 1},
			},
			// 2 + 2, not round(3.0)
			expected: Totals{Subtotal: 4, Total: 4},
		},
		{
			name: "percentage discount and tax",
			items: []LineItemInput{
				{Quantity: qty("2"), UnitPrice: 1999},
				{Quantity: qty("1.5"), UnitPrice: 333},
			},
			discount: &Discount{Type: types.DiscountTypePercentage, Value: qty("10")},
			taxRate:  qty("8.25"),
			expected: Totals{Subtotal: 4498, DiscountAmount: 450, TaxAmount: 334, Total: 4382},
		},
		{
			name: "fixed discount applied verbatim",
			items: []LineItemInput{
				{Quantity: qty("1"), UnitPrice: 5000},
			},
			discount: &Discount{Type: types.DiscountTypeFixed, Value: qty("1250")},
			taxRate:  qty("10"),
			expected: Totals{Subtotal: 5000, DiscountAmount: 1250, TaxAmount: 375, Total: 4125},
		},
		{
			name: "fixed discount larger than subtotal floors taxable base at zero",
			items: []LineItemInput{
				{Quantity: qty("1"), UnitPrice: 1000},
			},
			discount: &Discount{Type: types.DiscountTypeFixed, Value: qty("1500")},
			taxRate:  qty("10"),
			expected: Totals{Subtotal: 1000, DiscountAmount: 1500, TaxAmount: 0, Total: 0},
		},
		{
			name: "zero discount value ignored",
			items: []LineItemInput{
				{Quantity: qty("3"), UnitPrice: 100},
			},
			discount: &Discount{Type: types.DiscountTypePercentage, Value: decimal.Zero},
			expected: Totals{Subtotal: 300, Total: 300},
		},
		{
			name: "tax half rounds away from zero",
			items: []LineItemInput{
				{Quantity: qty("1"), UnitPrice: 5},
			},
			taxRate:  qty("10"),
			expected: Totals{Subtotal: 5, TaxAmount: 1, Total: 6},
		},
		{
			name: "full percentage discount",
			items: []LineItemInput{
				{Quantity: qty("1"), UnitPrice: 999},
			},
			discount: &Discount{Type: types.DiscountTypePercentage, Value: qty("100")},
			taxRate:  qty("20"),
			expected: Totals{Subtotal: 999, DiscountAmount: 999, Total: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(tt.items, tt.discount, tt.taxRate)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestComputeTotals_OrderIndependentAndNonNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		items := make([]LineItemInput, rng.Intn(8)+1)
		for i := range items {
			items[i] = LineItemInput{
				Quantity:  decimal.New(int64(rng.Intn(5000)+100), -2),
				UnitPrice: int64(rng.Intn(100000)),
			}
		}
		discount := &Discount{Type: types.DiscountTypePercentage, Value: decimal.New(int64(rng.Intn(10001)), -2)}
		taxRate := decimal.New(int64(rng.Intn(10001)), -2)

		forward := ComputeTotals(items, discount, taxRate)

		reversed := make([]LineItemInput, len(items))
		for i := range items {
			reversed[len(items)-1-i] = items[i]
		}
		backward := ComputeTotals(reversed, discount, taxRate)

		require.Equal(t, forward, backward)
		require.GreaterOrEqual(t, forward.Total, int64(0))
		require.GreaterOrEqual(t, forward.DiscountAmount, int64(0))
		require.LessOrEqual(t, forward.DiscountAmount, forward.Subtotal)
		require.GreaterOrEqual(t, forward.Total, forward.Subtotal-forward.DiscountAmount)
	}
}

func TestInvoice_RecomputeTotals(t *testing.T) {
	inv := &Invoice{
		Items: []*LineItem{
			{Description: "Design", Quantity: qty("10"), UnitPrice: 7500, SortOrder: 0},
		},
		Groups: []*ItemGroup{
			{
				Name: "Hosting",
				Items: []*LineItem{
					{Description: "Server", Quantity: qty("1"), UnitPrice: 2000, SortOrder: 1},
					{Description: "Backups", Quantity: qty("1"), UnitPrice: 500, SortOrder: 0},
				},
			},
		},
		Discount: &Discount{Type: types.DiscountTypeFixed, Value: qty("500")},
		TaxRate:  qty("5"),
	}

	inv.RecomputeTotals()

	assert.Equal(t, int64(77500), inv.Subtotal)
	assert.Equal(t, int64(500), inv.DiscountAmount)
	assert.Equal(t, int64(3850), inv.TaxAmount)
	assert.Equal(t, int64(80850), inv.Total)
	assert.Equal(t, int64(75000), inv.Items[0].Amount)

	all := inv.AllItems()
	require.Len(t, all, 3)
	assert.Equal(t, "Design", all[0].Description)
	assert.Equal(t, "Backups", all[1].Description)
	assert.Equal(t, "Server", all[2].Description)
}
