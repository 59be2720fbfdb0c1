package followup

import (
	"sort"
	"time"

	"github.com/invoicekit/invoicekit/internal/domain/invoice"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/samber/lo"
)

// MaxDayOffset caps how far out a reminder can be scheduled
const MaxDayOffset = 365

// Rule is the per-user reminder policy
type Rule struct {
	ID         string                `json:"id"`
	Enabled    bool                  `json:"enabled"`
	Trigger    types.FollowUpTrigger `json:"trigger"`
	DayOffsets []int                 `json:"day_offsets"`

	types.BaseModel
}

// Job is one scheduled reminder for one invoice
type Job struct {
	ID           string                  `db:"id" json:"id"`
	InvoiceID    string                  `db:"invoice_id" json:"invoice_id"`
	RuleID       string                  `db:"rule_id" json:"rule_id"`
	DayOffset    int                     `db:"day_offset" json:"day_offset"`
	ScheduledFor time.Time               `db:"scheduled_for" json:"scheduled_for"`
	Status       types.FollowUpJobStatus `db:"status" json:"status"`
	SentAt       *time.Time              `db:"sent_at" json:"sent_at,omitempty"`
	LastError    *string                 `db:"last_error" json:"last_error,omitempty"`

	types.BaseModel
}

// DefaultRule is used for users that never configured reminders: disabled.
func DefaultRule(userID string) *Rule {
	return &Rule{
		Enabled:    false,
		Trigger:    types.FollowUpTriggerAfterDue,
		DayOffsets: []int{1, 7, 14},
		BaseModel:  types.BaseModel{UserID: userID},
	}
}

func (r *Rule) Validate() error {
	if err := r.Trigger.Validate(); err != nil {
		return err
	}
	for _, offset := range r.DayOffsets {
		if offset < 0 || offset > MaxDayOffset {
			return ierr.NewError("day offset out of range").
				WithHintf("Day offsets must be between 0 and %d", MaxDayOffset).
				WithReportableDetails(map[string]any{
					"offset": offset,
				}).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

// Normalize sorts and dedupes the day offsets
func (r *Rule) Normalize() {
	offsets := lo.Uniq(r.DayOffsets)
	sort.Ints(offsets)
	r.DayOffsets = offsets
}

// Schedule computes the pending reminder jobs for a freshly sent invoice. Jobs whose
// time already passed at now are dropped. A disabled rule schedules nothing.
func (r *Rule) Schedule(inv *invoice.Invoice, now time.Time) []*Job {
	if r == nil || !r.Enabled {
		return nil
	}

	var anchor time.Time
	switch r.Trigger {
	case types.FollowUpTriggerAfterSent:
		if inv.SentAt == nil {
			return nil
		}
		anchor = *inv.SentAt
	case types.FollowUpTriggerAfterDue:
		anchor = inv.DueDate
	default:
		return nil
	}

	offsets := lo.Uniq(r.DayOffsets)
	sort.Ints(offsets)

	jobs := make([]*Job, 0, len(offsets))
	for _, offset := range offsets {
		scheduledFor := anchor.AddDate(0, 0, offset)
		if scheduledFor.Before(now) {
			continue
		}
		jobs = append(jobs, &Job{
			ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_FOLLOW_UP_JOB),
			InvoiceID:    inv.ID,
			RuleID:       r.ID,
			DayOffset:    offset,
			ScheduledFor: scheduledFor,
			Status:       types.FollowUpJobStatusPending,
			BaseModel: types.BaseModel{
				UserID:    inv.UserID,
				CreatedAt: now,
				UpdatedAt: now,
				CreatedBy: inv.UserID,
				UpdatedBy: inv.UserID,
			},
		})
	}
	return jobs
}
