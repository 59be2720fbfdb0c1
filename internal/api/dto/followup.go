package dto

import (
	"github.com/invoicekit/invoicekit/internal/domain/followup"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/invoicekit/invoicekit/internal/validator"
)

type UpdateFollowUpRuleRequest struct {
	Enabled    *bool                  `json:"enabled,omitempty"`
	Trigger    *types.FollowUpTrigger `json:"trigger,omitempty"`
	DayOffsets []int                  `json:"day_offsets,omitempty" validate:"omitempty,max=20,dive,min=0,max=365"`
}

func (r *UpdateFollowUpRuleRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// Apply copies the set fields onto rule
func (r *UpdateFollowUpRuleRequest) Apply(rule *followup.Rule) {
	if r.Enabled != nil {
		rule.Enabled = *r.Enabled
	}
	if r.Trigger != nil {
		rule.Trigger = *r.Trigger
	}
	if r.DayOffsets != nil {
		rule.DayOffsets = r.DayOffsets
	}
}

type FollowUpRuleResponse struct {
	*followup.Rule
}

type FollowUpJobResponse struct {
	*followup.Job
}

type ListFollowUpJobsResponse struct {
	Items []*FollowUpJobResponse `json:"items"`
}

// FollowUpRunResult is the outcome of one reminder job in a batch run
type FollowUpRunResult struct {
	JobID     string                  `json:"job_id"`
	InvoiceID string                  `json:"invoice_id"`
	Status    types.FollowUpJobStatus `json:"status"`
	Error     string                  `json:"error,omitempty"`
}

type ProcessFollowUpsResponse struct {
	Results []*FollowUpRunResult `json:"results"`
	Sent    int                  `json:"sent"`
	Failed  int                  `json:"failed"`
}

// MarkOverdueResponse lists the invoices whose stored status moved to OVERDUE
type MarkOverdueResponse struct {
	InvoiceIDs []string `json:"invoice_ids"`
	Updated    int      `json:"updated"`
	Failed     int      `json:"failed"`
}
