package recurring

import (
	"context"
	"time"

	"github.com/invoicekit/invoicekit/internal/types"
)

// Repository defines the interface for recurring template persistence.
// All methods except ListDue are user scoped.
type Repository interface {
	Create(ctx context.Context, r *RecurringInvoice) error
	Get(ctx context.Context, id string) (*RecurringInvoice, error)
	// Update writes the template header (schedule, status, pricing fields)
	Update(ctx context.Context, r *RecurringInvoice) error
	ReplaceItems(ctx context.Context, r *RecurringInvoice) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter *types.RecurringInvoiceFilter) ([]*RecurringInvoice, error)
	Count(ctx context.Context, filter *types.RecurringInvoiceFilter) (int, error)

	// ListDue returns active templates of every user with next_run_at <= now and
	// no end date or an end date after now, oldest first, items included
	ListDue(ctx context.Context, now time.Time) ([]*RecurringInvoice, error)
}
