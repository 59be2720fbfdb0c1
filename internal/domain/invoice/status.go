package invoice

import (
	"time"

	"github.com/invoicekit/invoicekit/internal/types"
)

// DeriveDisplayStatus projects the stored status onto what a reader should see at now.
// It never mutates the invoice. Every read path and the overdue batch job go through it.
func DeriveDisplayStatus(inv *Invoice, now time.Time) types.InvoiceStatus {
	if inv.Status == types.InvoiceStatusPaid || inv.PaidAt != nil {
		return types.InvoiceStatusPaid
	}
	if inv.PaidAmount > 0 && inv.PaidAmount < inv.Total {
		return types.InvoiceStatusPartiallyPaid
	}
	if inv.Status != types.InvoiceStatusDraft &&
		inv.Status != types.InvoiceStatusOverdue &&
		inv.DueDate.Before(now) {
		return types.InvoiceStatusOverdue
	}
	return inv.Status
}

// IsOverdue reports whether the stored status should be rewritten to OVERDUE
func IsOverdue(inv *Invoice, now time.Time) bool {
	return inv.Status != types.InvoiceStatusOverdue &&
		DeriveDisplayStatus(inv, now) == types.InvoiceStatusOverdue
}

// WithDisplayStatus returns a shallow copy whose Status is the derived display status
func WithDisplayStatus(inv *Invoice, now time.Time) *Invoice {
	if inv == nil {
		return nil
	}
	out := *inv
	out.Status = DeriveDisplayStatus(inv, now)
	return &out
}

// SettledStatus is the status after the paid amount changed: PAID when the balance is
// covered, PARTIALLY_PAID while something was paid, otherwise back to VIEWED or SENT.
func SettledStatus(inv *Invoice) types.InvoiceStatus {
	switch {
	case inv.PaidAmount >= inv.Total && inv.PaidAmount > 0:
		return types.InvoiceStatusPaid
	case inv.PaidAmount > 0:
		return types.InvoiceStatusPartiallyPaid
	case inv.ViewedAt != nil:
		return types.InvoiceStatusViewed
	default:
		return types.InvoiceStatusSent
	}
}
