package testutil

import (
	"context"
	"strings"
	"time"

	"github.com/invoicekit/invoicekit/internal/domain/invoice"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/samber/lo"
)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]
}

var _ invoice.Repository = (*InMemoryInvoiceStore)(nil)

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore(copyInvoice),
	}
}

func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	if inv == nil {
		return nil
	}
	out := *inv
	out.Items = copyLineItems(inv.Items)
	out.Groups = lo.Map(inv.Groups, func(g *invoice.ItemGroup, _ int) *invoice.ItemGroup {
		group := *g
		group.Items = copyLineItems(g.Items)
		return &group
	})
	if inv.Discount != nil {
		out.Discount = lo.ToPtr(*inv.Discount)
	}
	out.Tags = append([]string(nil), inv.Tags...)
	return &out
}

func copyLineItems(items []*invoice.LineItem) []*invoice.LineItem {
	return lo.Map(items, func(item *invoice.LineItem, _ int) *invoice.LineItem {
		return lo.ToPtr(*item)
	})
}

func invoiceFilterFn(ctx context.Context, inv *invoice.Invoice, filter interface{}) bool {
	if !CheckUserFilter(ctx, inv.UserID) {
		return false
	}
	f, ok := filter.(*types.InvoiceFilter)
	if !ok || f == nil {
		return true
	}
	if len(f.InvoiceIDs) > 0 && !lo.Contains(f.InvoiceIDs, inv.ID) {
		return false
	}
	if f.ClientID != "" && inv.ClientID != f.ClientID {
		return false
	}
	if f.Tag != "" && !lo.Contains(inv.Tags, f.Tag) {
		return false
	}
	if f.Search != "" {
		search := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(inv.PublicID), search) &&
			!strings.Contains(strings.ToLower(inv.Notes), search) {
			return false
		}
	}
	if f.DueBefore != nil && !inv.DueDate.Before(*f.DueBefore) {
		return false
	}
	if f.TimeRangeFilter != nil {
		if f.StartTime != nil && inv.CreatedAt.Before(*f.StartTime) {
			return false
		}
		if f.EndTime != nil && !inv.CreatedAt.Before(*f.EndTime) {
			return false
		}
	}
	return true
}

func invoiceSortFn(i, j *invoice.Invoice) bool {
	if i.CreatedAt.Equal(j.CreatedAt) {
		return i.ID > j.ID
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").
			WithHint("Invoice cannot be nil").
			Mark(ierr.ErrValidation)
	}
	existing, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, other *invoice.Invoice, _ interface{}) bool {
		return other.PublicID == inv.PublicID
	}, nil)
	if len(existing) > 0 {
		return ierr.NewError("invoice public id already exists").
			WithHint("An invoice with this public id already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	return s.InMemoryStore.Create(ctx, inv.ID, inv)
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || !CheckUserFilter(ctx, inv.UserID) {
		return nil, notFound("Invoice", id)
	}
	return inv, nil
}

func (s *InMemoryInvoiceStore) GetByPublicID(ctx context.Context, publicID string) (*invoice.Invoice, error) {
	found, err := s.InMemoryStore.List(ctx, nil, func(_ context.Context, inv *invoice.Invoice, _ interface{}) bool {
		return inv.PublicID == publicID
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, notFound("Invoice", publicID)
	}
	return found[0], nil
}

// Update writes the header and keeps the stored items, like the sql repository
func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	existing, err := s.Get(ctx, inv.ID)
	if err != nil {
		return err
	}
	updated := copyInvoice(inv)
	updated.Items = existing.Items
	updated.Groups = existing.Groups
	return s.InMemoryStore.Update(ctx, inv.ID, updated)
}

func (s *InMemoryInvoiceStore) ReplaceItems(ctx context.Context, inv *invoice.Invoice) error {
	existing, err := s.Get(ctx, inv.ID)
	if err != nil {
		return err
	}
	replaced := copyInvoice(inv)
	existing.Items = replaced.Items
	existing.Groups = replaced.Groups
	return s.InMemoryStore.Update(ctx, inv.ID, existing)
}

func (s *InMemoryInvoiceStore) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.InMemoryStore.Delete(ctx, id)
}

// List returns headers without items, ignoring the display-status filter
func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}
	items, err := s.InMemoryStore.List(ctx, filter, invoiceFilterFn, invoiceSortFn)
	if err != nil {
		return nil, err
	}
	for _, inv := range items {
		inv.Items = nil
		inv.Groups = nil
	}
	return items, nil
}

func (s *InMemoryInvoiceStore) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, invoiceFilterFn)
}

func (s *InMemoryInvoiceStore) CountByStatus(ctx context.Context) (map[types.InvoiceStatus]int, error) {
	items, err := s.InMemoryStore.List(ctx, nil, invoiceFilterFn, nil)
	if err != nil {
		return nil, err
	}
	counts := make(map[types.InvoiceStatus]int, len(types.AllInvoiceStatuses))
	for _, status := range types.AllInvoiceStatuses {
		counts[status] = 0
	}
	for _, inv := range items {
		counts[inv.Status]++
	}
	return counts, nil
}

func (s *InMemoryInvoiceStore) ListOverdueCandidates(ctx context.Context, dueBefore time.Time) ([]*invoice.Invoice, error) {
	return s.InMemoryStore.List(ctx, nil, func(_ context.Context, inv *invoice.Invoice, _ interface{}) bool {
		return (inv.Status == types.InvoiceStatusSent || inv.Status == types.InvoiceStatusViewed) &&
			inv.PaidAt == nil &&
			inv.DueDate.Before(dueBefore)
	}, func(i, j *invoice.Invoice) bool {
		return i.DueDate.Before(j.DueDate)
	})
}

func (s *InMemoryInvoiceStore) MarkPaidIfUnpaid(ctx context.Context, inv *invoice.Invoice) (bool, error) {
	existing, err := s.Get(ctx, inv.ID)
	if err != nil {
		return false, err
	}
	if existing.PaidAt != nil {
		return false, nil
	}
	if err := s.Update(ctx, inv); err != nil {
		return false, err
	}
	return true, nil
}
