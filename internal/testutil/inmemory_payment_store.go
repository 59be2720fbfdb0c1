package testutil

import (
	"context"

	"github.com/invoicekit/invoicekit/internal/domain/payment"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/samber/lo"
)

// InMemoryPaymentStore implements payment.Repository
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Payment]
}

var _ payment.Repository = (*InMemoryPaymentStore)(nil)

// NewInMemoryPaymentStore creates a new in-memory payment repository
func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore(func(p *payment.Payment) *payment.Payment {
			return lo.ToPtr(*p)
		}),
	}
}

// Create stores a new payment
func (s *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	if p == nil {
		return ierr.NewError("payment cannot be nil").
			WithHint("Payment cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if p.GatewayPaymentID != nil {
		if _, err := s.GetByGatewayPaymentID(ctx, *p.GatewayPaymentID); err == nil {
			return ierr.NewError("gateway payment already recorded").
				WithHint("This processor payment was already recorded").
				Mark(ierr.ErrAlreadyExists)
		}
	}
	return s.InMemoryStore.Create(ctx, p.ID, p)
}

// Get retrieves a payment by ID
func (s *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || !CheckUserFilter(ctx, p.UserID) {
		return nil, notFound("Payment", id)
	}
	return p, nil
}

func (s *InMemoryPaymentStore) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.InMemoryStore.Delete(ctx, id)
}

func (s *InMemoryPaymentStore) ListByInvoice(ctx context.Context, invoiceID string) ([]*payment.Payment, error) {
	return s.InMemoryStore.List(ctx, nil, func(ctx context.Context, p *payment.Payment, _ interface{}) bool {
		return p.InvoiceID == invoiceID && CheckUserFilter(ctx, p.UserID)
	}, func(i, j *payment.Payment) bool {
		if i.PaidAt.Equal(j.PaidAt) {
			return i.ID < j.ID
		}
		return i.PaidAt.Before(j.PaidAt)
	})
}

func (s *InMemoryPaymentStore) GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*payment.Payment, error) {
	found, err := s.InMemoryStore.List(ctx, nil, func(_ context.Context, p *payment.Payment, _ interface{}) bool {
		return p.GatewayPaymentID != nil && *p.GatewayPaymentID == gatewayPaymentID
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, notFound("Payment", gatewayPaymentID)
	}
	return found[0], nil
}
