package cron

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/service"
	"github.com/invoicekit/invoicekit/internal/types"
)

// RecurringInvoiceHandler handles the recurring invoice cron job
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

// ProcessDueRecurringInvoices godoc
// @Summary Generate due recurring invoices
// @Description Materializes one invoice for every due template of every user. Failures are reported per template.
// @Tags Cron
// @Produce json
// @Security InternalKeyAuth
// @Success 200 {object} dto.ProcessRecurringResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /v1/cron/recurring-invoices/process [post]
func (h *RecurringInvoiceHandler) ProcessDueRecurringInvoices(c *gin.Context) {
	ctx := types.WithNow(c.Request.Context(), types.Now(c.Request.Context()))
	h.logger.Infow("starting recurring invoices cron job", "time", types.Now(ctx))

	resp, err := h.recurringService.ProcessDueRecurringInvoices(ctx)
	if err != nil {
		h.logger.Errorw("recurring invoices cron job failed", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed recurring invoices cron job",
		"succeeded", resp.Succeeded,
		"failed", resp.Failed,
	)
	c.JSON(http.StatusOK, resp)
}
