package payment

import (
	"time"

	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/types"
)

// Payment is money applied to exactly one invoice
type Payment struct {
	ID        string `db:"id" json:"id"`
	InvoiceID string `db:"invoice_id" json:"invoice_id"`
	// Amount is in the invoice currency's minor units and always positive
	Amount int64               `db:"amount" json:"amount"`
	Method types.PaymentMethod `db:"method" json:"method"`
	Note   *string             `db:"note" json:"note,omitempty"`
	// GatewayPaymentID is the processor reference (checkout session id) for processor payments
	GatewayPaymentID *string   `db:"gateway_payment_id" json:"gateway_payment_id,omitempty"`
	PaidAt           time.Time `db:"paid_at" json:"paid_at"`

	types.BaseModel
}

func (p *Payment) Validate() error {
	if p.InvoiceID == "" {
		return ierr.NewError("invoice_id is required").
			WithHint("Payment must reference an invoice").
			Mark(ierr.ErrValidation)
	}
	if p.Amount <= 0 {
		return ierr.NewError("payment amount must be positive").
			WithHint("Payment amount must be greater than zero").
			WithReportableDetails(map[string]any{
				"amount": p.Amount,
			}).
			Mark(ierr.ErrValidation)
	}
	return p.Method.Validate()
}
