package stripe

import (
	"context"
	"testing"
	"time"

	"github.com/invoicekit/invoicekit/internal/config"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func newTestClient(t *testing.T) Gateway {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.Stripe.SecretKey = "sk_test_123"
	cfg.Stripe.WebhookSecret = testWebhookSecret
	return NewClient(cfg, logger.NewNoopLogger())
}

func sign(t *testing.T, payload string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func TestParseWebhookEvent_CheckoutCompleted(t *testing.T) {
	client := newTestClient(t)
	payload := `{
		"id": "evt_1",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test_1",
				"object": "checkout.session",
				"amount_total": 6000,
				"currency": "usd",
				"payment_status": "paid",
				"payment_intent": "pi_1",
				"metadata": {"invoice_id": "inv_1", "user_id": "user_1"}
			}
		}
	}`

	event, err := client.ParseWebhookEvent([]byte(payload), sign(t, payload))
	require.NoError(t, err)

	assert.Equal(t, "evt_1", event.ID)
	require.NotNil(t, event.Session)
	assert.Equal(t, "cs_test_1", event.Session.ID)
	assert.Equal(t, "inv_1", event.Session.InvoiceID)
	assert.Equal(t, "user_1", event.Session.UserID)
	assert.Equal(t, int64(6000), event.Session.Amount)
	assert.Equal(t, "pi_1", event.Session.PaymentIntentID)
	assert.True(t, event.Session.Paid)
}

func TestParseWebhookEvent_IgnoredType(t *testing.T) {
	client := newTestClient(t)
	payload := `{"id": "evt_2", "object": "event", "type": "customer.created", "data": {"object": {"id": "cus_1"}}}`

	event, err := client.ParseWebhookEvent([]byte(payload), sign(t, payload))
	require.NoError(t, err)
	assert.Equal(t, "customer.created", event.Type)
	assert.Nil(t, event.Session)
}

func TestParseWebhookEvent_BadSignature(t *testing.T) {
	client := newTestClient(t)
	payload := `{"id": "evt_3", "object": "event", "type": "checkout.session.completed", "data": {"object": {}}}`

	_, err := client.ParseWebhookEvent([]byte(payload), "t=1,v1=deadbeef")
	require.Error(t, err)
	assert.True(t, ierr.IsUnauthorized(err))
}

func TestCreateCheckoutSession_Disabled(t *testing.T) {
	client := NewClient(config.GetDefaultConfig(), logger.NewNoopLogger())
	assert.False(t, client.Enabled())

	_, err := client.CreateCheckoutSession(context.Background(), &CheckoutSessionRequest{
		InvoiceID: "inv_1",
		UserID:    "user_1",
		Amount:    100,
		Currency:  "usd",
	})
	require.Error(t, err)
	assert.True(t, ierr.IsInvalidOperation(err))
}
