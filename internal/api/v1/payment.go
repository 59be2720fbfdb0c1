package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoicekit/invoicekit/internal/api/dto"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/service"
)

type PaymentHandler struct {
	paymentService service.PaymentService
	stripeService  service.StripeService
	logger         *logger.Logger
}

func NewPaymentHandler(
	paymentService service.PaymentService,
	stripeService service.StripeService,
	logger *logger.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		stripeService:  stripeService,
		logger:         logger,
	}
}

// RecordPayment godoc
// @Summary Record a payment
// @Description Apply a payment to a sent invoice. The amount may not exceed the remaining balance.
// @Tags Payments
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Invoice ID"
// @Param payment body dto.RecordPaymentRequest true "Payment details"
// @Success 201 {object} dto.RecordPaymentResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Failure 422 {object} ierr.ErrorResponse
// @Router /v1/invoices/{id}/payments [post]
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	var req dto.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).WithHint("invalid request").Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.paymentService.RecordPayment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ListPayments godoc
// @Summary List payments of an invoice
// @Tags Payments
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Invoice ID"
// @Success 200 {object} dto.ListPaymentsResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /v1/invoices/{id}/payments [get]
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	resp, err := h.paymentService.ListPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// MarkPaid godoc
// @Summary Mark an invoice as paid
// @Description Settle the remaining balance with a manual payment
// @Tags Payments
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Invoice ID"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /v1/invoices/{id}/mark-paid [post]
func (h *PaymentHandler) MarkPaid(c *gin.Context) {
	resp, err := h.paymentService.MarkPaidManually(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DeletePayment godoc
// @Summary Delete a payment
// @Description Remove a payment from a partially paid invoice and recompute its status
// @Tags Payments
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Payment ID"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /v1/payments/{id} [delete]
func (h *PaymentHandler) DeletePayment(c *gin.Context) {
	resp, err := h.paymentService.DeletePayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CreateCheckoutSession godoc
// @Summary Create a checkout session
// @Description Start a hosted card checkout for the remaining balance of an invoice
// @Tags Payments
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Invoice ID"
// @Success 201 {object} dto.CheckoutSessionResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /v1/invoices/{id}/checkout [post]
func (h *PaymentHandler) CreateCheckoutSession(c *gin.Context) {
	resp, err := h.stripeService.CreateCheckoutSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Errorw("failed to create checkout session", "invoice_id", c.Param("id"), "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}
