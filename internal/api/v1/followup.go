package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoicekit/invoicekit/internal/api/dto"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/service"
)

type FollowUpHandler struct {
	followUpService service.FollowUpService
	logger          *logger.Logger
}

func NewFollowUpHandler(followUpService service.FollowUpService, logger *logger.Logger) *FollowUpHandler {
	return &FollowUpHandler{
		followUpService: followUpService,
		logger:          logger,
	}
}

// GetRule godoc
// @Summary Get the follow-up rule
// @Description The reminder rule of the current user. A default disabled rule is returned when none is saved.
// @Tags Follow-ups
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} dto.FollowUpRuleResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /v1/follow-up-rule [get]
func (h *FollowUpHandler) GetRule(c *gin.Context) {
	resp, err := h.followUpService.GetRule(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateRule godoc
// @Summary Update the follow-up rule
// @Description Applies to invoices sent afterwards. Use the invoice follow-ups endpoint to reschedule a sent invoice.
// @Tags Follow-ups
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param rule body dto.UpdateFollowUpRuleRequest true "Rule fields"
// @Success 200 {object} dto.FollowUpRuleResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /v1/follow-up-rule [put]
func (h *FollowUpHandler) UpdateRule(c *gin.Context) {
	var req dto.UpdateFollowUpRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).WithHint("invalid request").Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.followUpService.UpdateRule(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListJobs godoc
// @Summary List the reminders of an invoice
// @Tags Follow-ups
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Invoice ID"
// @Success 200 {object} dto.ListFollowUpJobsResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /v1/invoices/{id}/follow-ups [get]
func (h *FollowUpHandler) ListJobs(c *gin.Context) {
	resp, err := h.followUpService.ListJobs(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ScheduleForInvoice godoc
// @Summary Reschedule the reminders of an invoice
// @Description Cancel pending reminders and schedule the ones the current rule produces
// @Tags Follow-ups
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Invoice ID"
// @Success 200 {object} dto.ListFollowUpJobsResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /v1/invoices/{id}/follow-ups [post]
func (h *FollowUpHandler) ScheduleForInvoice(c *gin.Context) {
	resp, err := h.followUpService.ScheduleForInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
