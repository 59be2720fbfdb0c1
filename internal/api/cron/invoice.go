package cron

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/service"
	"github.com/invoicekit/invoicekit/internal/types"
)

// InvoiceHandler handles invoice related cron jobs
type InvoiceHandler struct {
	invoiceService service.InvoiceService
	logger         *logger.Logger
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(invoiceService service.InvoiceService, logger *logger.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		logger:         logger,
	}
}

// MarkOverdueInvoices godoc
// @Summary Persist overdue statuses
// @Description Moves every unpaid invoice past its due date to OVERDUE, across users
// @Tags Cron
// @Produce json
// @Security InternalKeyAuth
// @Success 200 {object} dto.MarkOverdueResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /v1/cron/invoices/mark-overdue [post]
func (h *InvoiceHandler) MarkOverdueInvoices(c *gin.Context) {
	ctx := types.WithNow(c.Request.Context(), types.Now(c.Request.Context()))
	h.logger.Infow("starting mark overdue invoices cron job", "time", types.Now(ctx))

	resp, err := h.invoiceService.MarkOverdueInvoices(ctx)
	if err != nil {
		h.logger.Errorw("mark overdue invoices cron job failed", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed mark overdue invoices cron job",
		"updated", resp.Updated,
		"failed", resp.Failed,
	)
	c.JSON(http.StatusOK, resp)
}
