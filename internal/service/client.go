package service

import (
	"context"
	"time"

	"github.com/invoicekit/invoicekit/internal/api/dto"
	"github.com/invoicekit/invoicekit/internal/cache"
	"github.com/invoicekit/invoicekit/internal/domain/client"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/samber/lo"
)

const clientCacheTTL = 10 * time.Minute

type ClientService interface {
	CreateClient(ctx context.Context, req dto.CreateClientRequest) (*dto.ClientResponse, error)
	GetClient(ctx context.Context, id string) (*dto.ClientResponse, error)
	ListClients(ctx context.Context, filter *types.ClientFilter) (*dto.ListClientsResponse, error)
	UpdateClient(ctx context.Context, id string, req dto.UpdateClientRequest) (*dto.ClientResponse, error)
	DeleteClient(ctx context.Context, id string) error
}

type clientService struct {
	ServiceParams
}

func NewClientService(params ServiceParams) ClientService {
	return &clientService{ServiceParams: params}
}

func (s *clientService) CreateClient(ctx context.Context, req dto.CreateClientRequest) (*dto.ClientResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c := req.ToClient(ctx)
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if err := s.ClientRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.Logger.Infow("created client", "client_id", c.ID)
	return &dto.ClientResponse{Client: c}, nil
}

func (s *clientService) GetClient(ctx context.Context, id string) (*dto.ClientResponse, error) {
	if id == "" {
		return nil, ierr.NewError("client_id is required").
			WithHint("Client ID is required").
			Mark(ierr.ErrValidation)
	}

	c, err := s.getClient(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.ClientResponse{Client: c}, nil
}

func (s *clientService) ListClients(ctx context.Context, filter *types.ClientFilter) (*dto.ListClientsResponse, error) {
	if filter == nil {
		filter = types.NewClientFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	clients, err := s.ClientRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	total, err := s.ClientRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(clients, func(c *client.Client, _ int) *dto.ClientResponse {
		return &dto.ClientResponse{Client: c}
	})
	response := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
	return &response, nil
}

func (s *clientService) UpdateClient(ctx context.Context, id string, req dto.UpdateClientRequest) (*dto.ClientResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c, err := s.ClientRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	req.Apply(c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.Touch(ctx)

	if err := s.ClientRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	s.Cache.Delete(ctx, clientCacheKey(ctx, id))

	return &dto.ClientResponse{Client: c}, nil
}

// DeleteClient refuses to remove a client that invoices or recurring invoices still reference
func (s *clientService) DeleteClient(ctx context.Context, id string) error {
	if _, err := s.ClientRepo.Get(ctx, id); err != nil {
		return err
	}

	filter := types.NewNoLimitInvoiceFilter()
	filter.ClientID = id
	count, err := s.InvoiceRepo.Count(ctx, filter)
	if err != nil {
		return err
	}
	templates := types.NewRecurringInvoiceFilter()
	templates.ClientID = id
	templateCount, err := s.RecurringRepo.Count(ctx, templates)
	if err != nil {
		return err
	}
	if count > 0 || templateCount > 0 {
		return ierr.NewError("client has invoices").
			WithHint("Delete the client's invoices and recurring invoices before deleting the client").
			WithReportableDetails(map[string]any{
				"client_id":       id,
				"invoice_count":   count,
				"recurring_count": templateCount,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	if err := s.ClientRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.Cache.Delete(ctx, clientCacheKey(ctx, id))
	return nil
}

// getClient reads a client through the cache. Entries are keyed by owner so a cached
// client never leaks across users.
func (p ServiceParams) getClient(ctx context.Context, id string) (*client.Client, error) {
	key := clientCacheKey(ctx, id)
	if cached, ok := p.Cache.Get(ctx, key); ok {
		if c, ok := cached.(*client.Client); ok {
			copied := *c
			return &copied, nil
		}
	}

	c, err := p.ClientRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	copied := *c
	p.Cache.Set(ctx, key, &copied, clientCacheTTL)
	return c, nil
}

func clientCacheKey(ctx context.Context, id string) string {
	return cache.GenerateKey(cache.PrefixClient, types.GetUserID(ctx), id)
}
