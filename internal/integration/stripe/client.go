package stripe

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/invoicekit/invoicekit/internal/config"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Metadata keys stamped on every checkout session so webhooks can find their invoice
const (
	MetadataInvoiceID = "invoice_id"
	MetadataUserID    = "user_id"
	MetadataPublicID  = "public_id"
	MetadataSource    = "payment_source"

	paymentSource = "invoicekit"
)

// Gateway is the processor surface the ledger needs
type Gateway interface {
	Enabled() bool
	CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSession, error)
	ParseWebhookEvent(payload []byte, signature string) (*WebhookEvent, error)
}

// Client handles Stripe API client setup and configuration
type Client struct {
	api           *stripe.Client
	webhookSecret string
	successURL    string
	cancelURL     string
	logger        *logger.Logger
}

var _ Gateway = (*Client)(nil)

// NewClient creates a new Stripe client from configuration. A client without a
// secret key reports itself disabled and rejects every call.
func NewClient(cfg *config.Configuration, log *logger.Logger) Gateway {
	c := &Client{
		webhookSecret: cfg.Stripe.WebhookSecret,
		successURL:    cfg.Stripe.SuccessURL,
		cancelURL:     cfg.Stripe.CancelURL,
		logger:        log,
	}
	if cfg.Stripe.Enabled() {
		c.api = stripe.NewClient(cfg.Stripe.SecretKey, nil)
	}
	return c
}

func (c *Client) Enabled() bool {
	return c.api != nil
}

// CreateCheckoutSession creates a one-off hosted checkout for the invoice balance
func (c *Client) CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSession, error) {
	if !c.Enabled() {
		return nil, ierr.NewError("stripe is not configured").
			WithHint("Online payments are not enabled").
			Mark(ierr.ErrInvalidOperation)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	metadata := map[string]string{
		MetadataInvoiceID: req.InvoiceID,
		MetadataUserID:    req.UserID,
		MetadataPublicID:  req.PublicID,
		MetadataSource:    paymentSource,
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(req.Currency)),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(req.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(req.InvoiceID),
		SuccessURL:        stripe.String(c.expandURL(c.successURL, req.PublicID)),
		CancelURL:         stripe.String(c.expandURL(c.cancelURL, req.PublicID)),
		Metadata:          metadata,
		PaymentIntentData: &stripe.CheckoutSessionCreatePaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	session, err := c.api.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		c.logger.Errorw("failed to create Stripe checkout session",
			"error", err,
			"invoice_id", req.InvoiceID,
		)
		return nil, ierr.WithError(err).
			WithHint("Unable to create Stripe checkout session").
			WithReportableDetails(map[string]any{
				"invoice_id": req.InvoiceID,
			}).
			Mark(ierr.ErrHTTPClient)
	}

	c.logger.Infow("created Stripe checkout session",
		"session_id", session.ID,
		"invoice_id", req.InvoiceID,
		"amount", req.Amount,
		"currency", req.Currency,
	)

	return &CheckoutSession{
		ID:        session.ID,
		URL:       session.URL,
		Amount:    req.Amount,
		Currency:  req.Currency,
		ExpiresAt: time.Unix(session.ExpiresAt, 0).UTC(),
	}, nil
}

// ParseWebhookEvent verifies the signature and decodes the events the ledger handles.
// Other event types come back with a nil Session.
func (c *Client) ParseWebhookEvent(payload []byte, signature string) (*WebhookEvent, error) {
	if c.webhookSecret == "" {
		return nil, ierr.NewError("stripe webhook secret is not configured").
			WithHint("Stripe webhooks are not enabled").
			Mark(ierr.ErrInvalidOperation)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		c.logger.Errorw("Stripe webhook verification failed", "error", err)
		return nil, ierr.WithError(err).
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrUnauthorized)
	}

	out := &WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			c.logger.Errorw("failed to parse checkout session from webhook", "error", err, "event_id", event.ID)
			return nil, ierr.WithError(err).
				WithHint("Invalid checkout session data in webhook").
				Mark(ierr.ErrValidation)
		}
		out.Session = &CompletedSession{
			ID:        session.ID,
			InvoiceID: session.Metadata[MetadataInvoiceID],
			UserID:    session.Metadata[MetadataUserID],
			Amount:    session.AmountTotal,
			Currency:  string(session.Currency),
			Paid:      session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		}
		if session.PaymentIntent != nil {
			out.Session.PaymentIntentID = session.PaymentIntent.ID
		}
	}

	return out, nil
}

func (c *Client) expandURL(url, publicID string) string {
	return strings.ReplaceAll(url, "{PUBLIC_ID}", publicID)
}
