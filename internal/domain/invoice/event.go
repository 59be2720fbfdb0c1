package invoice

import (
	"context"
	"time"

	"github.com/invoicekit/invoicekit/internal/types"
)

// Event is an append-only audit entry. Events are never updated or deleted.
type Event struct {
	ID        string                 `db:"id" json:"id"`
	InvoiceID string                 `db:"invoice_id" json:"invoice_id"`
	UserID    string                 `db:"user_id" json:"user_id"`
	Type      types.InvoiceEventType `db:"type" json:"type"`
	Payload   types.Payload          `db:"payload" json:"payload,omitempty"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

// NewEvent builds an event stamped with the caller and the context clock
func NewEvent(ctx context.Context, invoiceID string, eventType types.InvoiceEventType, payload types.Payload) *Event {
	if payload == nil {
		payload = types.Payload{}
	}
	return &Event{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_EVENT),
		InvoiceID: invoiceID,
		UserID:    types.GetUserID(ctx),
		Type:      eventType,
		Payload:   payload,
		CreatedAt: types.Now(ctx),
	}
}

// EventRepository persists the invoice audit log
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	// ListByInvoice returns events oldest first
	ListByInvoice(ctx context.Context, invoiceID string) ([]*Event, error)
}
