package email

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/invoicekit/invoicekit/internal/config"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/resend/resend-go/v2"
)

// Sender delivers a rendered message. Implementations report a disabled transport
// as an unsuccessful result without an error.
type Sender interface {
	Send(ctx context.Context, msg Message) (*SendResult, error)
}

// EmailClient delivers messages through Resend, retrying transient failures
type EmailClient struct {
	client      *resend.Client
	enabled     bool
	fromAddress string
	replyTo     string
	maxRetries  uint64
	logger      *logger.Logger
}

var _ Sender = (*EmailClient)(nil)

// NewEmailClient creates a new email client
func NewEmailClient(cfg *config.Configuration, log *logger.Logger) Sender {
	c := &EmailClient{
		enabled:     cfg.Email.Enabled && cfg.Email.APIKey != "",
		fromAddress: cfg.Email.FromAddress,
		replyTo:     cfg.Email.ReplyTo,
		maxRetries:  cfg.Email.MaxRetries,
		logger:      log,
	}
	if c.enabled {
		c.client = resend.NewClient(cfg.Email.APIKey)
	}
	return c
}

// IsEnabled returns whether the email client is enabled
func (c *EmailClient) IsEnabled() bool {
	return c.enabled
}

// Send delivers the message, retrying with exponential backoff up to the configured
// number of retries or until ctx is done
func (c *EmailClient) Send(ctx context.Context, msg Message) (*SendResult, error) {
	if !c.enabled {
		c.logger.Warnw("email client is disabled, skipping email send",
			"to", msg.To,
			"subject", msg.Subject,
		)
		return &SendResult{
			Success: false,
			Error:   "email client is disabled",
		}, nil
	}

	params := &resend.SendEmailRequest{
		From:    c.fromAddress,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	if c.replyTo != "" {
		params.ReplyTo = c.replyTo
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 30 * time.Second

	var messageID string
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		sent, err := c.client.Emails.SendWithContext(ctx, params)
		if err != nil {
			c.logger.Warnw("email send attempt failed",
				"attempt", attempt,
				"to", msg.To,
				"error", err,
			)
			return err
		}
		messageID = sent.Id
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx))

	if err != nil {
		c.logger.Errorw("failed to send email",
			"error", err,
			"to", msg.To,
			"subject", msg.Subject,
			"attempts", attempt,
		)
		return &SendResult{Success: false, Error: err.Error()}, ierr.WithError(err).
			WithHint("Email delivery failed").
			WithReportableDetails(map[string]any{
				"to": msg.To,
			}).
			Mark(ierr.ErrDeliveryFailed)
	}

	c.logger.Infow("email sent successfully",
		"message_id", messageID,
		"to", msg.To,
		"subject", msg.Subject,
	)

	return &SendResult{MessageID: messageID, Success: true}, nil
}
