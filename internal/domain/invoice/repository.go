package invoice

import (
	"context"
	"time"

	"github.com/invoicekit/invoicekit/internal/types"
)

// Repository defines the interface for invoice persistence operations.
// Unless stated otherwise every method is scoped to the user id in the context.
type Repository interface {
	// Create inserts the invoice together with its groups and items
	Create(ctx context.Context, invoice *Invoice) error

	// Get retrieves an invoice with its items by ID
	Get(ctx context.Context, id string) (*Invoice, error)

	// GetByPublicID retrieves an invoice by the id shared with clients. Not user scoped.
	GetByPublicID(ctx context.Context, publicID string) (*Invoice, error)

	// Update writes the invoice header fields (status, amounts, timestamps, notes)
	Update(ctx context.Context, invoice *Invoice) error

	// ReplaceItems swaps the stored groups and items for the ones on the invoice
	ReplaceItems(ctx context.Context, invoice *Invoice) error

	// Delete removes the invoice and its items
	Delete(ctx context.Context, id string) error

	// List retrieves invoices, without items, based on filter criteria on stored fields
	List(ctx context.Context, filter *types.InvoiceFilter) ([]*Invoice, error)

	// Count returns the total count of invoices based on filter criteria
	Count(ctx context.Context, filter *types.InvoiceFilter) (int, error)

	// CountByStatus aggregates the stored status of the caller's invoices
	CountByStatus(ctx context.Context) (map[types.InvoiceStatus]int, error)

	// ListOverdueCandidates returns unpaid SENT or VIEWED invoices of every user whose
	// due date is before the given time. Not user scoped.
	ListOverdueCandidates(ctx context.Context, dueBefore time.Time) ([]*Invoice, error)

	// MarkPaidIfUnpaid writes the invoice header only if paid_at is still null in storage.
	// It reports whether the row was updated.
	MarkPaidIfUnpaid(ctx context.Context, invoice *Invoice) (bool, error)
}
