package v1

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/service"
	"github.com/invoicekit/invoicekit/internal/types"
)

// maxWebhookBodyBytes matches the limit stripe documents for event payloads
const maxWebhookBodyBytes = 65536

type WebhookHandler struct {
	stripeService service.StripeService
	logger        *logger.Logger
}

func NewWebhookHandler(stripeService service.StripeService, logger *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		stripeService: stripeService,
		logger:        logger,
	}
}

// HandleStripeWebhook godoc
// @Summary Receive stripe events
// @Description Verifies the signature and credits completed checkouts. Redeliveries are acknowledged without changes.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe signature"
// @Success 200 {object} dto.StripeWebhookResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Router /webhooks/stripe [post]
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Failed to read request body").
			Mark(ierr.ErrValidation))
		return
	}

	signature := c.GetHeader(types.HeaderStripeSig)
	if signature == "" {
		c.Error(ierr.NewError("missing stripe signature").
			WithHint("Missing Stripe-Signature header").
			Mark(ierr.ErrUnauthorized))
		return
	}

	resp, err := h.stripeService.HandleWebhook(c.Request.Context(), payload, signature)
	if err != nil {
		h.logger.Errorw("failed to handle stripe webhook", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("stripe webhook processed",
		"event_id", resp.EventID,
		"event_type", resp.Type,
		"handled", resp.Handled,
		"invoice_id", resp.InvoiceID,
	)
	c.JSON(http.StatusOK, resp)
}
