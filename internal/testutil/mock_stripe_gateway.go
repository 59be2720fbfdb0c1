package testutil

import (
	"context"

	"github.com/invoicekit/invoicekit/internal/integration/stripe"
	"github.com/stretchr/testify/mock"
)

var _ stripe.Gateway = (*MockStripeGateway)(nil)

// MockStripeGateway is a testify mock of the processor gateway
type MockStripeGateway struct {
	mock.Mock
}

func NewMockStripeGateway() *MockStripeGateway {
	return &MockStripeGateway{}
}

func (m *MockStripeGateway) Enabled() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockStripeGateway) CreateCheckoutSession(ctx context.Context, req *stripe.CheckoutSessionRequest) (*stripe.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.CheckoutSession), args.Error(1)
}

func (m *MockStripeGateway) ParseWebhookEvent(payload []byte, signature string) (*stripe.WebhookEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.WebhookEvent), args.Error(1)
}
