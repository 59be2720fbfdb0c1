package invoice

import (
	"testing"
	"time"

	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestDeriveDisplayStatus(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -3)
	future := now.AddDate(0, 0, 3)

	tests := []struct {
		name     string
		invoice  Invoice
		expected types.InvoiceStatus
	}{
		{
			name:     "draft past due stays draft",
			invoice:  Invoice{Status: types.InvoiceStatusDraft, Total: 10000, DueDate: past},
			expected: types.InvoiceStatusDraft,
		},
		{
			name:     "sent not yet due",
			invoice:  Invoice{Status: types.InvoiceStatusSent, Total: 10000, DueDate: future},
			expected: types.InvoiceStatusSent,
		},
		{
			name:     "sent past due shows overdue",
			invoice:  Invoice{Status: types.InvoiceStatusSent, Total: 10000, DueDate: past},
			expected: types.InvoiceStatusOverdue,
		},
		{
			name:     "viewed past due shows overdue",
			invoice:  Invoice{Status: types.InvoiceStatusViewed, Total: 10000, DueDate: past},
			expected: types.InvoiceStatusOverdue,
		},
		{
			name:     "persisted overdue unchanged",
			invoice:  Invoice{Status: types.InvoiceStatusOverdue, Total: 10000, DueDate: past},
			expected: types.InvoiceStatusOverdue,
		},
		{
			name:     "partial payment wins over due date",
			invoice:  Invoice{Status: types.InvoiceStatusPartiallyPaid, Total: 10000, PaidAmount: 4000, DueDate: past},
			expected: types.InvoiceStatusPartiallyPaid,
		},
		{
			name:     "paid past due stays paid",
			invoice:  Invoice{Status: types.InvoiceStatusPaid, Total: 10000, PaidAmount: 10000, PaidAt: lo.ToPtr(past), DueDate: past},
			expected: types.InvoiceStatusPaid,
		},
		{
			name:     "paid at set overrides stale stored status",
			invoice:  Invoice{Status: types.InvoiceStatusOverdue, Total: 10000, PaidAmount: 10000, PaidAt: lo.ToPtr(now), DueDate: past},
			expected: types.InvoiceStatusPaid,
		},
		{
			name:     "due exactly now is not overdue",
			invoice:  Invoice{Status: types.InvoiceStatusSent, Total: 10000, DueDate: now},
			expected: types.InvoiceStatusSent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveDisplayStatus(&tt.invoice, now))
		})
	}
}

func TestDeriveDisplayStatus_Monotonicity(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

	for _, stored := range types.AllInvoiceStatuses {
		for _, due := range []time.Time{now.AddDate(0, 0, -1), now.AddDate(0, 0, 1)} {
			partial := &Invoice{Status: stored, Total: 10000, PaidAmount: 1, DueDate: due}
			assert.NotEqual(t, types.InvoiceStatusDraft, DeriveDisplayStatus(partial, now), "stored %s", stored)

			paid := &Invoice{Status: stored, Total: 10000, PaidAmount: 10000, PaidAt: lo.ToPtr(now), DueDate: due}
			assert.Equal(t, types.InvoiceStatusPaid, DeriveDisplayStatus(paid, now), "stored %s", stored)
		}
	}
}

func TestIsOverdue(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -1)

	assert.True(t, IsOverdue(&Invoice{Status: types.InvoiceStatusSent, Total: 100, DueDate: past}, now))
	assert.True(t, IsOverdue(&Invoice{Status: types.InvoiceStatusViewed, Total: 100, DueDate: past}, now))
	assert.False(t, IsOverdue(&Invoice{Status: types.InvoiceStatusOverdue, Total: 100, DueDate: past}, now))
	assert.False(t, IsOverdue(&Invoice{Status: types.InvoiceStatusDraft, Total: 100, DueDate: past}, now))
	assert.False(t, IsOverdue(&Invoice{Status: types.InvoiceStatusPartiallyPaid, Total: 100, PaidAmount: 50, DueDate: past}, now))
	assert.False(t, IsOverdue(&Invoice{Status: types.InvoiceStatusSent, Total: 100, DueDate: now.AddDate(0, 0, 1)}, now))
}

func TestSettledStatus(t *testing.T) {
	viewed := lo.ToPtr(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, types.InvoiceStatusPaid, SettledStatus(&Invoice{Total: 100, PaidAmount: 100}))
	assert.Equal(t, types.InvoiceStatusPartiallyPaid, SettledStatus(&Invoice{Total: 100, PaidAmount: 40}))
	assert.Equal(t, types.InvoiceStatusViewed, SettledStatus(&Invoice{Total: 100, ViewedAt: viewed}))
	assert.Equal(t, types.InvoiceStatusSent, SettledStatus(&Invoice{Total: 100}))
}

func TestIsFullyPaid(t *testing.T) {
	paidAt := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		invoice  Invoice
		expected bool
	}{
		{name: "nothing paid", invoice: Invoice{Total: 10000}, expected: false},
		{name: "partially paid", invoice: Invoice{Total: 10000, PaidAmount: 4000}, expected: false},
		{name: "balance covered", invoice: Invoice{Total: 10000, PaidAmount: 10000}, expected: true},
		{name: "zero total not yet marked paid", invoice: Invoice{Total: 0}, expected: false},
		{name: "zero total marked paid", invoice: Invoice{Total: 0, PaidAt: &paidAt}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.invoice.IsFullyPaid())
		})
	}
}
