package recurring

import (
	"testing"
	"time"

	"github.com/invoicekit/invoicekit/internal/domain/invoice"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextRunDate(t *testing.T) {
	tests := []struct {
		name      string
		current   time.Time
		frequency types.RecurringFrequency
		want      time.Time
	}{
		{
			name:      "weekly",
			current:   time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC),
			frequency: types.RecurringFrequencyWeekly,
			want:      time.Date(2024, time.January, 22, 9, 0, 0, 0, time.UTC),
		},
		{
			name:      "biweekly across month boundary",
			current:   time.Date(2024, time.January, 25, 0, 0, 0, 0, time.UTC),
			frequency: types.RecurringFrequencyBiweekly,
			want:      time.Date(2024, time.February, 8, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "monthly",
			current:   time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
			frequency: types.RecurringFrequencyMonthly,
			want:      time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "monthly from 31st normalizes past short month",
			current:   time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC),
			frequency: types.RecurringFrequencyMonthly,
			want:      time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "quarterly across year boundary",
			current:   time.Date(2024, time.November, 10, 0, 0, 0, 0, time.UTC),
			frequency: types.RecurringFrequencyQuarterly,
			want:      time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "yearly from leap day",
			current:   time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
			frequency: types.RecurringFrequencyYearly,
			want:      time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextRunDate(tt.current, tt.frequency))
		})
	}
}

func TestRecurringInvoice_IsDue(t *testing.T) {
	now := time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)

	base := func() *RecurringInvoice {
		return &RecurringInvoice{
			Status:    types.RecurringStatusActive,
			Frequency: types.RecurringFrequencyMonthly,
			NextRunAt: now.Add(-time.Hour),
		}
	}

	assert.True(t, base().IsDue(now))

	exact := base()
	exact.NextRunAt = now
	assert.True(t, exact.IsDue(now))

	future := base()
	future.NextRunAt = now.Add(time.Hour)
	assert.False(t, future.IsDue(now))

	paused := base()
	paused.Status = types.RecurringStatusPaused
	assert.False(t, paused.IsDue(now))

	ended := base()
	ended.EndDate = lo.ToPtr(now.Add(-time.Minute))
	assert.False(t, ended.IsDue(now))

	endingLater := base()
	endingLater.EndDate = lo.ToPtr(now.AddDate(0, 6, 0))
	assert.True(t, endingLater.IsDue(now))
}

func TestRecurringInvoice_ToInvoiceAndAdvance(t *testing.T) {
	runAt := time.Date(2024, time.January, 15, 8, 30, 0, 0, time.UTC)
	tmpl := &RecurringInvoice{
		ID:        "rec_test",
		ClientID:  "cli_test",
		Currency:  "usd",
		Frequency: types.RecurringFrequencyMonthly,
		Status:    types.RecurringStatusActive,
		NextRunAt: time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
		DueDays:   30,
		TaxRate:   decimal.NewFromInt(10),
		Discount:  &invoice.Discount{Type: types.DiscountTypePercentage, Value: decimal.NewFromInt(50)},
		Items: []*Item{
			{Description: "Retainer", Quantity: decimal.NewFromInt(1), UnitPrice: 10000},
		},
		Groups: []*Group{
			{
				Name:      "Extras",
				SortOrder: 1,
				Items: []*Item{
					{Description: "Support", Quantity: decimal.NewFromInt(2), UnitPrice: 2500},
				},
			},
		},
	}
	tmpl.AssignIDs()

	inv := tmpl.ToInvoice(runAt)

	assert.Equal(t, types.InvoiceStatusDraft, inv.Status)
	assert.Equal(t, types.InvoiceSourceRecurring, inv.Source)
	assert.Equal(t, "rec_test", lo.FromPtr(inv.RecurringInvoiceID))
	assert.Equal(t, runAt.AddDate(0, 0, 30), inv.DueDate)
	assert.Equal(t, int64(15000), inv.Subtotal)
	assert.Equal(t, int64(7500), inv.DiscountAmount)
	assert.Equal(t, int64(750), inv.TaxAmount)
	assert.Equal(t, int64(8250), inv.Total)
	require.Len(t, inv.Groups, 1)
	require.Len(t, inv.Groups[0].Items, 1)
	assert.Equal(t, inv.Groups[0].ID, lo.FromPtr(inv.Groups[0].Items[0].GroupID))
	assert.NotEqual(t, tmpl.Groups[0].ID, inv.Groups[0].ID)

	tmpl.Advance(runAt)
	assert.Equal(t, time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC), tmpl.NextRunAt)
	assert.Equal(t, runAt, lo.FromPtr(tmpl.LastRunAt))
}
