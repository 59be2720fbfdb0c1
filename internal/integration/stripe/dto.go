package stripe

import (
	"time"

	ierr "github.com/invoicekit/invoicekit/internal/errors"
)

// CheckoutSessionRequest describes the balance to collect for one invoice
type CheckoutSessionRequest struct {
	InvoiceID      string
	PublicID       string
	UserID         string
	Description    string
	CustomerEmail  string
	Amount         int64
	Currency       string
	IdempotencyKey string
}

func (r *CheckoutSessionRequest) Validate() error {
	if r.InvoiceID == "" || r.UserID == "" {
		return ierr.NewError("invoice and user are required").
			WithHint("Checkout session must reference an invoice").
			Mark(ierr.ErrValidation)
	}
	if r.Amount <= 0 {
		return ierr.NewError("checkout amount must be positive").
			WithHint("Nothing left to pay on this invoice").
			WithReportableDetails(map[string]any{
				"amount": r.Amount,
			}).
			Mark(ierr.ErrInvalidState)
	}
	return nil
}

// CheckoutSession is the hosted payment page returned to the payer
type CheckoutSession struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	ExpiresAt time.Time `json:"expires_at"`
}

// WebhookEvent is a verified processor event
type WebhookEvent struct {
	ID      string
	Type    string
	Session *CompletedSession
}

// CompletedSession is a checkout session that finished, decoded from its metadata
type CompletedSession struct {
	ID              string
	PaymentIntentID string
	InvoiceID       string
	UserID          string
	Amount          int64
	Currency        string
	// Paid is false for async methods that settle later
	Paid bool
}
