package testutil

import (
	"context"
	"time"

	"github.com/invoicekit/invoicekit/internal/domain/recurring"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/samber/lo"
)

// InMemoryRecurringInvoiceStore implements recurring.Repository
type InMemoryRecurringInvoiceStore struct {
	*InMemoryStore[*recurring.RecurringInvoice]
}

var _ recurring.Repository = (*InMemoryRecurringInvoiceStore)(nil)

func NewInMemoryRecurringInvoiceStore() *InMemoryRecurringInvoiceStore {
	return &InMemoryRecurringInvoiceStore{
		InMemoryStore: NewInMemoryStore(copyRecurringInvoice),
	}
}

func copyRecurringInvoice(r *recurring.RecurringInvoice) *recurring.RecurringInvoice {
	out := *r
	copyItems := func(items []*recurring.Item) []*recurring.Item {
		return lo.Map(items, func(item *recurring.Item, _ int) *recurring.Item {
			return lo.ToPtr(*item)
		})
	}
	out.Items = copyItems(r.Items)
	out.Groups = lo.Map(r.Groups, func(g *recurring.Group, _ int) *recurring.Group {
		group := *g
		group.Items = copyItems(g.Items)
		return &group
	})
	if r.Discount != nil {
		out.Discount = lo.ToPtr(*r.Discount)
	}
	out.Tags = append([]string(nil), r.Tags...)
	return &out
}

func recurringFilterFn(ctx context.Context, r *recurring.RecurringInvoice, filter interface{}) bool {
	if !CheckUserFilter(ctx, r.UserID) {
		return false
	}
	f, ok := filter.(*types.RecurringInvoiceFilter)
	if !ok || f == nil {
		return true
	}
	if f.ClientID != "" && r.ClientID != f.ClientID {
		return false
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, r.Status) {
		return false
	}
	return true
}

func (s *InMemoryRecurringInvoiceStore) Create(ctx context.Context, r *recurring.RecurringInvoice) error {
	return s.InMemoryStore.Create(ctx, r.ID, r)
}

func (s *InMemoryRecurringInvoiceStore) Get(ctx context.Context, id string) (*recurring.RecurringInvoice, error) {
	r, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || !CheckUserFilter(ctx, r.UserID) {
		return nil, notFound("Recurring invoice", id)
	}
	return r, nil
}

// Update writes the header and keeps the stored items
func (s *InMemoryRecurringInvoiceStore) Update(ctx context.Context, r *recurring.RecurringInvoice) error {
	existing, err := s.Get(ctx, r.ID)
	if err != nil {
		return err
	}
	updated := copyRecurringInvoice(r)
	updated.Items = existing.Items
	updated.Groups = existing.Groups
	return s.InMemoryStore.Update(ctx, r.ID, updated)
}

func (s *InMemoryRecurringInvoiceStore) ReplaceItems(ctx context.Context, r *recurring.RecurringInvoice) error {
	existing, err := s.Get(ctx, r.ID)
	if err != nil {
		return err
	}
	replaced := copyRecurringInvoice(r)
	existing.Items = replaced.Items
	existing.Groups = replaced.Groups
	return s.InMemoryStore.Update(ctx, r.ID, existing)
}

func (s *InMemoryRecurringInvoiceStore) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.InMemoryStore.Delete(ctx, id)
}

func (s *InMemoryRecurringInvoiceStore) List(ctx context.Context, filter *types.RecurringInvoiceFilter) ([]*recurring.RecurringInvoice, error) {
	if filter == nil {
		filter = types.NewRecurringInvoiceFilter()
	}
	items, err := s.InMemoryStore.List(ctx, filter, recurringFilterFn, func(i, j *recurring.RecurringInvoice) bool {
		return i.CreatedAt.After(j.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	for _, r := range items {
		r.Items = nil
		r.Groups = nil
	}
	return items, nil
}

func (s *InMemoryRecurringInvoiceStore) Count(ctx context.Context, filter *types.RecurringInvoiceFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, recurringFilterFn)
}

func (s *InMemoryRecurringInvoiceStore) ListDue(ctx context.Context, now time.Time) ([]*recurring.RecurringInvoice, error) {
	return s.InMemoryStore.List(ctx, nil, func(_ context.Context, r *recurring.RecurringInvoice, _ interface{}) bool {
		return r.Status == types.RecurringStatusActive &&
			!r.NextRunAt.After(now) &&
			(r.EndDate == nil || r.EndDate.After(now))
	}, func(i, j *recurring.RecurringInvoice) bool {
		if i.NextRunAt.Equal(j.NextRunAt) {
			return i.ID < j.ID
		}
		return i.NextRunAt.Before(j.NextRunAt)
	})
}
