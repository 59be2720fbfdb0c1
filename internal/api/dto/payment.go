package dto

import (
	"time"

	"github.com/invoicekit/invoicekit/internal/domain/payment"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/invoicekit/invoicekit/internal/validator"
)

// RecordPaymentRequest applies money to an invoice. Amount is in minor units.
type RecordPaymentRequest struct {
	Amount int64               `json:"amount" validate:"required,gt=0"`
	Method types.PaymentMethod `json:"method" validate:"required"`
	Note   *string             `json:"note,omitempty" validate:"omitempty,max=1000"`
	PaidAt *time.Time          `json:"paid_at,omitempty"`
}

func (r *RecordPaymentRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.Method.Validate()
}

type PaymentResponse struct {
	*payment.Payment
}

// RecordPaymentResponse returns the payment together with the invoice it settled
type RecordPaymentResponse struct {
	Payment *PaymentResponse `json:"payment"`
	Invoice *InvoiceResponse `json:"invoice"`
}

type ListPaymentsResponse struct {
	Items []*PaymentResponse `json:"items"`
}

// CheckoutSessionResponse points the payer at the hosted checkout page
type CheckoutSessionResponse struct {
	SessionID string    `json:"session_id"`
	URL       string    `json:"url"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StripeWebhookResponse acknowledges a processor event. Duplicate deliveries and event
// types the ledger ignores are acknowledged with Handled=false.
type StripeWebhookResponse struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	Handled   bool   `json:"handled"`
	InvoiceID string `json:"invoice_id,omitempty"`
}
