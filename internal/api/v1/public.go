package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/service"
)

// PublicInvoiceHandler serves the client-facing invoice link. Requests are not
// authenticated; the public id is the only credential.
type PublicInvoiceHandler struct {
	invoiceService service.InvoiceService
	stripeService  service.StripeService
	logger         *logger.Logger
}

func NewPublicInvoiceHandler(
	invoiceService service.InvoiceService,
	stripeService service.StripeService,
	logger *logger.Logger,
) *PublicInvoiceHandler {
	return &PublicInvoiceHandler{
		invoiceService: invoiceService,
		stripeService:  stripeService,
		logger:         logger,
	}
}

// GetPublicInvoice godoc
// @Summary View an invoice by its public id
// @Description The first view of a sent invoice moves it to VIEWED
// @Tags Public
// @Produce json
// @Param public_id path string true "Public invoice ID"
// @Success 200 {object} dto.PublicInvoiceResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 429 {object} ierr.ErrorResponse
// @Router /public/invoices/{public_id} [get]
func (h *PublicInvoiceHandler) GetPublicInvoice(c *gin.Context) {
	resp, err := h.invoiceService.GetPublicInvoice(c.Request.Context(), c.Param("public_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CreateCheckoutSession godoc
// @Summary Pay an invoice online
// @Description Start a hosted card checkout for the remaining balance
// @Tags Public
// @Produce json
// @Param public_id path string true "Public invoice ID"
// @Success 201 {object} dto.CheckoutSessionResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Failure 429 {object} ierr.ErrorResponse
// @Router /public/invoices/{public_id}/checkout [post]
func (h *PublicInvoiceHandler) CreateCheckoutSession(c *gin.Context) {
	resp, err := h.stripeService.CreatePublicCheckoutSession(c.Request.Context(), c.Param("public_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}
