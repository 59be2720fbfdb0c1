package followup

import (
	"context"
	"time"
)

// Repository persists reminder rules and jobs. Methods are user scoped unless noted.
type Repository interface {
	// GetRule returns the caller's rule or a not found error
	GetRule(ctx context.Context) (*Rule, error)
	UpsertRule(ctx context.Context, rule *Rule) error

	CreateJobs(ctx context.Context, jobs []*Job) error
	// CancelPending moves every pending job of the invoice to canceled and returns how many moved
	CancelPending(ctx context.Context, invoiceID string) (int, error)
	// ListDuePending returns pending jobs of every user scheduled at or before now. Not user scoped.
	ListDuePending(ctx context.Context, now time.Time, limit int) ([]*Job, error)
	UpdateJob(ctx context.Context, job *Job) error
	ListByInvoice(ctx context.Context, invoiceID string) ([]*Job, error)
}
