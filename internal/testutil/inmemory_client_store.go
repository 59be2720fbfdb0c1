package testutil

import (
	"context"
	"strings"

	"github.com/invoicekit/invoicekit/internal/domain/client"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/samber/lo"
)

// InMemoryClientStore implements client.Repository
type InMemoryClientStore struct {
	*InMemoryStore[*client.Client]
}

var _ client.Repository = (*InMemoryClientStore)(nil)

func NewInMemoryClientStore() *InMemoryClientStore {
	return &InMemoryClientStore{
		InMemoryStore: NewInMemoryStore(func(c *client.Client) *client.Client {
			out := *c
			if c.Metadata != nil {
				out.Metadata = make(types.Metadata, len(c.Metadata))
				for k, v := range c.Metadata {
					out.Metadata[k] = v
				}
			}
			return &out
		}),
	}
}

func clientFilterFn(ctx context.Context, c *client.Client, filter interface{}) bool {
	if !CheckUserFilter(ctx, c.UserID) {
		return false
	}
	f, ok := filter.(*types.ClientFilter)
	if !ok || f == nil {
		return true
	}
	if len(f.ClientIDs) > 0 && !lo.Contains(f.ClientIDs, c.ID) {
		return false
	}
	if f.Search != "" {
		search := strings.ToLower(f.Search)
		return strings.Contains(strings.ToLower(c.Name), search) ||
			strings.Contains(strings.ToLower(c.Email), search) ||
			strings.Contains(strings.ToLower(c.Company), search)
	}
	return true
}

func (s *InMemoryClientStore) Create(ctx context.Context, c *client.Client) error {
	return s.InMemoryStore.Create(ctx, c.ID, c)
}

func (s *InMemoryClientStore) Get(ctx context.Context, id string) (*client.Client, error) {
	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || !CheckUserFilter(ctx, c.UserID) {
		return nil, notFound("Client", id)
	}
	return c, nil
}

func (s *InMemoryClientStore) Update(ctx context.Context, c *client.Client) error {
	if _, err := s.Get(ctx, c.ID); err != nil {
		return err
	}
	return s.InMemoryStore.Update(ctx, c.ID, c)
}

func (s *InMemoryClientStore) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.InMemoryStore.Delete(ctx, id)
}

func (s *InMemoryClientStore) List(ctx context.Context, filter *types.ClientFilter) ([]*client.Client, error) {
	if filter == nil {
		filter = types.NewClientFilter()
	}
	return s.InMemoryStore.List(ctx, filter, clientFilterFn, func(i, j *client.Client) bool {
		return i.CreatedAt.After(j.CreatedAt)
	})
}

func (s *InMemoryClientStore) Count(ctx context.Context, filter *types.ClientFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, clientFilterFn)
}
