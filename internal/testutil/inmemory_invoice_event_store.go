package testutil

import (
	"context"

	"github.com/invoicekit/invoicekit/internal/domain/invoice"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/samber/lo"
)

// InMemoryInvoiceEventStore implements invoice.EventRepository
type InMemoryInvoiceEventStore struct {
	*InMemoryStore[*invoice.Event]
}

var _ invoice.EventRepository = (*InMemoryInvoiceEventStore)(nil)

func NewInMemoryInvoiceEventStore() *InMemoryInvoiceEventStore {
	return &InMemoryInvoiceEventStore{
		InMemoryStore: NewInMemoryStore(func(e *invoice.Event) *invoice.Event {
			return lo.ToPtr(*e)
		}),
	}
}

func (s *InMemoryInvoiceEventStore) Create(ctx context.Context, event *invoice.Event) error {
	return s.InMemoryStore.Create(ctx, event.ID, event)
}

func (s *InMemoryInvoiceEventStore) ListByInvoice(ctx context.Context, invoiceID string) ([]*invoice.Event, error) {
	return s.InMemoryStore.List(ctx, nil, func(ctx context.Context, e *invoice.Event, _ interface{}) bool {
		return e.InvoiceID == invoiceID && CheckUserFilter(ctx, e.UserID)
	}, func(i, j *invoice.Event) bool {
		if i.CreatedAt.Equal(j.CreatedAt) {
			return i.ID < j.ID
		}
		return i.CreatedAt.Before(j.CreatedAt)
	})
}

// TypesFor returns the event types of an invoice oldest first, for assertions
func (s *InMemoryInvoiceEventStore) TypesFor(ctx context.Context, invoiceID string) []types.InvoiceEventType {
	events, _ := s.ListByInvoice(ctx, invoiceID)
	return lo.Map(events, func(e *invoice.Event, _ int) types.InvoiceEventType {
		return e.Type
	})
}
