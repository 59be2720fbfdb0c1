package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoicekit/invoicekit/internal/api/dto"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/service"
	"github.com/invoicekit/invoicekit/internal/types"
)

type RecurringInvoiceHandler struct {
	recurringService service.RecurringService
	logger           *logger.Logger
}

func NewRecurringInvoiceHandler(recurringService service.RecurringService, logger *logger.Logger) *RecurringInvoiceHandler {
	return &RecurringInvoiceHandler{
		recurringService: recurringService,
		logger:           logger,
	}
}

// CreateRecurringInvoice godoc
// @Summary Create a recurring invoice
// @Description Create a template that generates an invoice on every run date
// @Tags Recurring Invoices
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param template body dto.CreateRecurringInvoiceRequest true "Template details"
// @Success 201 {object} dto.RecurringInvoiceResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /v1/recurring-invoices [post]
func (h *RecurringInvoiceHandler) CreateRecurringInvoice(c *gin.Context) {
	var req dto.CreateRecurringInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).WithHint("invalid request").Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.recurringService.CreateRecurringInvoice(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetRecurringInvoice godoc
// @Summary Get a recurring invoice
// @Tags Recurring Invoices
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Recurring invoice ID"
// @Success 200 {object} dto.RecurringInvoiceResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /v1/recurring-invoices/{id} [get]
func (h *RecurringInvoiceHandler) GetRecurringInvoice(c *gin.Context) {
	resp, err := h.recurringService.GetRecurringInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListRecurringInvoices godoc
// @Summary List recurring invoices
// @Tags Recurring Invoices
// @Produce json
// @Security ApiKeyAuth
// @Param filter query types.RecurringInvoiceFilter false "Filter"
// @Success 200 {object} dto.ListRecurringInvoicesResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /v1/recurring-invoices [get]
func (h *RecurringInvoiceHandler) ListRecurringInvoices(c *gin.Context) {
	var filter types.RecurringInvoiceFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).WithHint("invalid query parameters").Mark(ierr.ErrValidation))
		return
	}

	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	resp, err := h.recurringService.ListRecurringInvoices(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateRecurringInvoice godoc
// @Summary Update a recurring invoice
// @Description Changes apply to invoices generated from the next run on
// @Tags Recurring Invoices
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Recurring invoice ID"
// @Param template body dto.UpdateRecurringInvoiceRequest true "Fields to change"
// @Success 200 {object} dto.RecurringInvoiceResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /v1/recurring-invoices/{id} [put]
func (h *RecurringInvoiceHandler) UpdateRecurringInvoice(c *gin.Context) {
	var req dto.UpdateRecurringInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).WithHint("invalid request").Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.recurringService.UpdateRecurringInvoice(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// PauseRecurringInvoice godoc
// @Summary Pause a recurring invoice
// @Tags Recurring Invoices
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Recurring invoice ID"
// @Success 200 {object} dto.RecurringInvoiceResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /v1/recurring-invoices/{id}/pause [post]
func (h *RecurringInvoiceHandler) PauseRecurringInvoice(c *gin.Context) {
	resp, err := h.recurringService.PauseRecurringInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ResumeRecurringInvoice godoc
// @Summary Resume a recurring invoice
// @Description Runs missed while paused are skipped
// @Tags Recurring Invoices
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Recurring invoice ID"
// @Success 200 {object} dto.RecurringInvoiceResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /v1/recurring-invoices/{id}/resume [post]
func (h *RecurringInvoiceHandler) ResumeRecurringInvoice(c *gin.Context) {
	resp, err := h.recurringService.ResumeRecurringInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CancelRecurringInvoice godoc
// @Summary Cancel a recurring invoice
// @Tags Recurring Invoices
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Recurring invoice ID"
// @Success 200 {object} dto.RecurringInvoiceResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /v1/recurring-invoices/{id}/cancel [post]
func (h *RecurringInvoiceHandler) CancelRecurringInvoice(c *gin.Context) {
	resp, err := h.recurringService.CancelRecurringInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DeleteRecurringInvoice godoc
// @Summary Delete a recurring invoice
// @Description Invoices already generated from the template are kept
// @Tags Recurring Invoices
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Recurring invoice ID"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /v1/recurring-invoices/{id} [delete]
func (h *RecurringInvoiceHandler) DeleteRecurringInvoice(c *gin.Context) {
	if err := h.recurringService.DeleteRecurringInvoice(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true, Message: "recurring invoice deleted"})
}

// RunRecurringInvoice godoc
// @Summary Generate the next invoice now
// @Description Materialize the next invoice of a template immediately and advance its schedule
// @Tags Recurring Invoices
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Recurring invoice ID"
// @Success 201 {object} dto.RecurringRunResult
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /v1/recurring-invoices/{id}/run [post]
func (h *RecurringInvoiceHandler) RunRecurringInvoice(c *gin.Context) {
	resp, err := h.recurringService.MaterializeInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Errorw("failed to materialize recurring invoice", "recurring_invoice_id", c.Param("id"), "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}
