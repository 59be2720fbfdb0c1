package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/invoicekit/invoicekit/internal/api/dto"
	"github.com/invoicekit/invoicekit/internal/domain/invoice"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/idempotency"
	"github.com/invoicekit/invoicekit/internal/integration/stripe"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/samber/lo"
)

var errAlreadySettled = errors.New("invoice already settled")

// StripeService connects invoices to hosted checkout and applies completed payments
type StripeService interface {
	CreateCheckoutSession(ctx context.Context, invoiceID string) (*dto.CheckoutSessionResponse, error)
	CreatePublicCheckoutSession(ctx context.Context, publicID string) (*dto.CheckoutSessionResponse, error)

	// HandleWebhook verifies and applies a processor event. A completed checkout credits
	// the remaining balance once; redeliveries are acknowledged without changes.
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*dto.StripeWebhookResponse, error)
}

type stripeService struct {
	ServiceParams
	idempotency *idempotency.Generator
}

func NewStripeService(params ServiceParams) StripeService {
	return &stripeService{
		ServiceParams: params,
		idempotency:   idempotency.NewGenerator(),
	}
}

func (s *stripeService) CreateCheckoutSession(ctx context.Context, invoiceID string) (*dto.CheckoutSessionResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return s.createSession(ctx, inv)
}

func (s *stripeService) CreatePublicCheckoutSession(ctx context.Context, publicID string) (*dto.CheckoutSessionResponse, error) {
	inv, err := s.InvoiceRepo.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if inv.Status == types.InvoiceStatusDraft {
		return nil, ierr.NewError("invoice not found").
			WithHintf("Invoice %s was not found", publicID).
			Mark(ierr.ErrNotFound)
	}
	return s.createSession(types.SetUserID(ctx, inv.UserID), inv)
}

func (s *stripeService) createSession(ctx context.Context, inv *invoice.Invoice) (*dto.CheckoutSessionResponse, error) {
	if !s.Stripe.Enabled() {
		return nil, ierr.NewError("online payments disabled").
			WithHint("Online payments are not enabled").
			Mark(ierr.ErrInvalidOperation)
	}
	if err := checkPayable(inv); err != nil {
		return nil, err
	}

	remaining := inv.RemainingAmount()
	req := &stripe.CheckoutSessionRequest{
		InvoiceID:   inv.ID,
		PublicID:    inv.PublicID,
		UserID:      inv.UserID,
		Description: fmt.Sprintf("Invoice %s", inv.PublicID),
		Amount:      remaining,
		Currency:    inv.Currency,
		// a new balance gets a new session, a repeated click reuses the same one
		IdempotencyKey: s.idempotency.GenerateKey(idempotency.ScopeCheckoutSession, map[string]interface{}{
			"invoice_id":  inv.ID,
			"remaining":   remaining,
			"paid_amount": inv.PaidAmount,
		}),
	}
	if c, err := s.getClient(ctx, inv.ClientID); err == nil {
		req.CustomerEmail = c.Email
	}

	session, err := s.Stripe.CreateCheckoutSession(ctx, req)
	if err != nil {
		return nil, err
	}

	return &dto.CheckoutSessionResponse{
		SessionID: session.ID,
		URL:       session.URL,
		Amount:    session.Amount,
		Currency:  session.Currency,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *stripeService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*dto.StripeWebhookResponse, error) {
	event, err := s.Stripe.ParseWebhookEvent(payload, signature)
	if err != nil {
		return nil, err
	}

	response := &dto.StripeWebhookResponse{EventID: event.ID, Type: event.Type}

	session := event.Session
	if session == nil {
		s.Logger.Debugw("ignoring stripe event", "event_id", event.ID, "type", event.Type)
		return response, nil
	}
	if !session.Paid || session.InvoiceID == "" || session.UserID == "" {
		s.Logger.Infow("ignoring unpaid or foreign checkout session",
			"event_id", event.ID,
			"session_id", session.ID,
			"paid", session.Paid,
		)
		return response, nil
	}

	response.InvoiceID = session.InvoiceID
	ctx = types.SetUserID(ctx, session.UserID)
	gatewayID := lo.Ternary(session.PaymentIntentID != "", session.PaymentIntentID, session.ID)

	existing, err := s.PaymentRepo.GetByGatewayPaymentID(ctx, gatewayID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		s.Logger.Infow("stripe payment already recorded",
			"event_id", event.ID,
			"payment_id", existing.ID,
		)
		return response, nil
	}

	now := types.Now(ctx)
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		inv, err := s.InvoiceRepo.Get(ctx, session.InvoiceID)
		if err != nil {
			return err
		}
		if inv.IsFullyPaid() {
			return errAlreadySettled
		}

		remaining := inv.RemainingAmount()
		if session.Amount != remaining || !types.IsMatchingCurrency(session.Currency, inv.Currency) {
			s.Logger.Warnw("checkout amount differs from invoice balance",
				"invoice_id", inv.ID,
				"session_amount", session.Amount,
				"session_currency", session.Currency,
				"remaining", remaining,
			)
			// kept on the audit log for reconciliation
			if err := s.appendEvent(ctx, inv.ID, types.InvoiceEventPaymentMismatch, types.Payload{
				"session_id":        session.ID,
				"gateway_id":        gatewayID,
				"captured_amount":   session.Amount,
				"captured_currency": session.Currency,
				"credited_amount":   remaining,
				"invoice_currency":  inv.Currency,
			}); err != nil {
				return err
			}
		}

		p, err := s.settle(ctx, inv, remaining, types.PaymentMethodStripe, lo.ToPtr(gatewayID), now)
		if err != nil {
			return err
		}

		payload := types.Payload{
			"session_id": session.ID,
			"gateway_id": gatewayID,
			"amount":     remaining,
		}
		if p != nil {
			payload["payment_id"] = p.ID
		}
		return s.appendEvent(ctx, inv.ID, types.InvoiceEventPaidProcessor, payload)
	})

	switch {
	case err == nil:
		response.Handled = true
		s.Logger.Infow("applied stripe payment",
			"event_id", event.ID,
			"invoice_id", session.InvoiceID,
		)
		return response, nil
	case errors.Is(err, errAlreadySettled), ierr.IsInvalidState(err), ierr.IsAlreadyExists(err):
		s.Logger.Infow("stripe payment for settled invoice ignored",
			"event_id", event.ID,
			"invoice_id", session.InvoiceID,
		)
		return response, nil
	default:
		return nil, err
	}
}
