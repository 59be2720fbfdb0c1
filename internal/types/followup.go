package types

import (
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/samber/lo"
)

// FollowUpTrigger selects the anchor date reminder offsets are counted from
type FollowUpTrigger string

const (
	FollowUpTriggerAfterSent FollowUpTrigger = "after_sent"
	FollowUpTriggerAfterDue  FollowUpTrigger = "after_due"
)

func (t FollowUpTrigger) Validate() error {
	allowed := []FollowUpTrigger{
		FollowUpTriggerAfterSent,
		FollowUpTriggerAfterDue,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid follow-up trigger").
			WithHint("Trigger must be after_sent or after_due").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// FollowUpJobStatus is the state of a scheduled reminder
type FollowUpJobStatus string

const (
	FollowUpJobStatusPending  FollowUpJobStatus = "pending"
	FollowUpJobStatusSent     FollowUpJobStatus = "sent"
	FollowUpJobStatusCanceled FollowUpJobStatus = "canceled"
	FollowUpJobStatusFailed   FollowUpJobStatus = "failed"
)
