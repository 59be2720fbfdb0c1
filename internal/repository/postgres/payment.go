package postgres

import (
	"context"

	"github.com/invoicekit/invoicekit/internal/domain/payment"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/postgres"
	"github.com/invoicekit/invoicekit/internal/types"
)

const paymentColumns = `id, invoice_id, user_id, amount, method, note, gateway_payment_id, paid_at,
	created_at, updated_at, created_by, updated_by`

type paymentRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return &paymentRepository{db: db, logger: logger}
}

func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `) VALUES (
			:id, :invoice_id, :user_id, :amount, :method, :note, :gateway_payment_id, :paid_at,
			:created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating payment",
		"payment_id", p.ID,
		"invoice_id", p.InvoiceID,
		"amount", p.Amount,
	)

	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return dbError(err, "failed to create payment")
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	var p payment.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 AND user_id = $2`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &p, query, id, types.GetUserID(ctx)); err != nil {
		return nil, notFoundOr(err, "Payment", id)
	}
	return &p, nil
}

func (r *paymentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.GetQuerier(ctx).ExecContext(ctx,
		`DELETE FROM payments WHERE id = $1 AND user_id = $2`, id, types.GetUserID(ctx))
	if err != nil {
		return dbError(err, "failed to delete payment")
	}
	return requireAffected(result, "Payment", id)
}

func (r *paymentRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE invoice_id = $1 AND user_id = $2
		ORDER BY paid_at ASC, id ASC`

	var payments []*payment.Payment
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &payments, query, invoiceID, types.GetUserID(ctx)); err != nil {
		return nil, dbError(err, "failed to list payments")
	}
	return payments, nil
}

func (r *paymentRepository) GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*payment.Payment, error) {
	var p payment.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_payment_id = $1`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &p, query, gatewayPaymentID); err != nil {
		return nil, notFoundOr(err, "Payment", gatewayPaymentID)
	}
	return &p, nil
}
