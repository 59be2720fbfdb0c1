package cron

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/service"
	"github.com/invoicekit/invoicekit/internal/types"
)

// FollowUpHandler sends due payment reminders
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

// ProcessDueFollowUps godoc
// @Summary Send due reminders
// @Description Sends every pending reminder whose time has come, across users
// @Tags Cron
// @Produce json
// @Security InternalKeyAuth
// @Success 200 {object} dto.ProcessFollowUpsResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /v1/cron/follow-ups/process [post]
func (h *FollowUpHandler) ProcessDueFollowUps(c *gin.Context) {
	ctx := types.WithNow(c.Request.Context(), types.Now(c.Request.Context()))
	h.logger.Infow("starting follow-ups cron job", "time", types.Now(ctx))

	resp, err := h.followUpService.ProcessDueFollowUps(ctx)
	if err != nil {
		h.logger.Errorw("follow-ups cron job failed", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed follow-ups cron job",
		"sent", resp.Sent,
		"failed", resp.Failed,
	)
	c.JSON(http.StatusOK, resp)
}
