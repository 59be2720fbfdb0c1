package postgres

import (
	"context"

	"github.com/invoicekit/invoicekit/internal/domain/invoice"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/postgres"
	"github.com/invoicekit/invoicekit/internal/types"
)

type invoiceEventRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewInvoiceEventRepository(db *postgres.DB, logger *logger.Logger) invoice.EventRepository {
	return &invoiceEventRepository{db: db, logger: logger}
}

func (r *invoiceEventRepository) Create(ctx context.Context, event *invoice.Event) error {
	query := `
		INSERT INTO invoice_events (id, invoice_id, user_id, type, payload, created_at)
		VALUES (:id, :invoice_id, :user_id, :type, :payload, :created_at)`

	r.logger.Debugw("appending invoice event",
		"invoice_id", event.InvoiceID,
		"type", event.Type,
	)

	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return dbError(err, "failed to create invoice event")
	}
	return nil
}

func (r *invoiceEventRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]*invoice.Event, error) {
	query := `
		SELECT e.id, e.invoice_id, e.user_id, e.type, e.payload, e.created_at
		FROM invoice_events e
		JOIN invoices i ON i.id = e.invoice_id
		WHERE e.invoice_id = $1 AND i.user_id = $2
		ORDER BY e.created_at ASC, e.id ASC`

	var events []*invoice.Event
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &events, query, invoiceID, types.GetUserID(ctx)); err != nil {
		return nil, dbError(err, "failed to list invoice events")
	}
	return events, nil
}
