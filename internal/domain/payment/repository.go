package payment

import (
	"context"
)

// Repository defines the interface for payment persistence
type Repository interface {
	Create(ctx context.Context, payment *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	Delete(ctx context.Context, id string) error
	// ListByInvoice returns payments oldest first
	ListByInvoice(ctx context.Context, invoiceID string) ([]*Payment, error)
	// GetByGatewayPaymentID looks a processor payment up by its gateway reference.
	// Not user scoped, used by webhook processing.
	GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*Payment, error)
}
