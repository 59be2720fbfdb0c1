package service

import (
	"context"
	"time"

	"github.com/invoicekit/invoicekit/internal/api/dto"
	"github.com/invoicekit/invoicekit/internal/cache"
	"github.com/invoicekit/invoicekit/internal/domain/followup"
	"github.com/invoicekit/invoicekit/internal/domain/invoice"
	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/samber/lo"
)

const (
	followUpRuleCacheTTL = 5 * time.Minute
	followUpBatchSize    = 200

	errEmailDisabled = "email delivery is disabled"
)

type FollowUpService interface {
	GetRule(ctx context.Context) (*dto.FollowUpRuleResponse, error)
	UpdateRule(ctx context.Context, req dto.UpdateFollowUpRuleRequest) (*dto.FollowUpRuleResponse, error)

	// ScheduleForInvoice replaces the pending reminders of a sent invoice with the ones
	// the current rule produces
	ScheduleForInvoice(ctx context.Context, invoiceID string) (*dto.ListFollowUpJobsResponse, error)
	ListJobs(ctx context.Context, invoiceID string) (*dto.ListFollowUpJobsResponse, error)

	// ProcessDueFollowUps sends every pending reminder whose time has come, across users
	ProcessDueFollowUps(ctx context.Context) (*dto.ProcessFollowUpsResponse, error)
}

type followUpService struct {
	ServiceParams
}

func NewFollowUpService(params ServiceParams) FollowUpService {
	return &followUpService{ServiceParams: params}
}

func (s *followUpService) GetRule(ctx context.Context) (*dto.FollowUpRuleResponse, error) {
	rule, err := s.getFollowUpRule(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.FollowUpRuleResponse{Rule: rule}, nil
}

func (s *followUpService) UpdateRule(ctx context.Context, req dto.UpdateFollowUpRuleRequest) (*dto.FollowUpRuleResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rule, err := s.getFollowUpRule(ctx)
	if err != nil {
		return nil, err
	}

	req.Apply(rule)
	rule.Normalize()
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	if rule.ID == "" {
		rule.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_FOLLOW_UP_RULE)
		rule.BaseModel = types.GetDefaultBaseModel(ctx)
	}
	rule.Touch(ctx)

	if err := s.FollowUpRepo.UpsertRule(ctx, rule); err != nil {
		return nil, err
	}
	s.Cache.Delete(ctx, followUpRuleCacheKey(ctx))

	s.Logger.Infow("updated follow-up rule",
		"rule_id", rule.ID,
		"enabled", rule.Enabled,
		"trigger", rule.Trigger,
		"day_offsets", rule.DayOffsets,
	)
	return &dto.FollowUpRuleResponse{Rule: rule}, nil
}

func (s *followUpService) ScheduleForInvoice(ctx context.Context, invoiceID string) (*dto.ListFollowUpJobsResponse, error) {
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		inv, err := s.InvoiceRepo.Get(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == types.InvoiceStatusDraft || inv.IsFullyPaid() {
			return ierr.NewError("invoice does not take reminders").
				WithHint("Reminders can only be scheduled for sent, unpaid invoices").
				WithReportableDetails(map[string]any{
					"invoice_id": inv.ID,
					"status":     inv.Status,
				}).
				Mark(ierr.ErrInvalidState)
		}

		if _, err := s.cancelFollowUps(ctx, inv.ID); err != nil {
			return err
		}
		_, err = s.scheduleFollowUps(ctx, inv)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.ListJobs(ctx, invoiceID)
}

func (s *followUpService) ListJobs(ctx context.Context, invoiceID string) (*dto.ListFollowUpJobsResponse, error) {
	if _, err := s.InvoiceRepo.Get(ctx, invoiceID); err != nil {
		return nil, err
	}

	jobs, err := s.FollowUpRepo.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	return &dto.ListFollowUpJobsResponse{
		Items: lo.Map(jobs, func(j *followup.Job, _ int) *dto.FollowUpJobResponse {
			return &dto.FollowUpJobResponse{Job: j}
		}),
	}, nil
}

func (s *followUpService) ProcessDueFollowUps(ctx context.Context) (*dto.ProcessFollowUpsResponse, error) {
	now := types.Now(ctx)
	ctx = types.WithNow(ctx, now)

	jobs, err := s.FollowUpRepo.ListDuePending(ctx, now, followUpBatchSize)
	if err != nil {
		return nil, err
	}

	response := &dto.ProcessFollowUpsResponse{Results: make([]*dto.FollowUpRunResult, 0, len(jobs))}
	for _, job := range jobs {
		result := &dto.FollowUpRunResult{JobID: job.ID, InvoiceID: job.InvoiceID}

		err := isolate(s.Logger, job.ID, func() error {
			return s.processJob(types.SetUserID(ctx, job.UserID), job, now)
		})
		result.Status = job.Status
		switch {
		case err != nil:
			result.Error = err.Error()
			response.Failed++
		case job.Status == types.FollowUpJobStatusFailed:
			result.Error = lo.FromPtr(job.LastError)
			response.Failed++
		case job.Status == types.FollowUpJobStatusSent:
			response.Sent++
		}
		response.Results = append(response.Results, result)
	}

	s.Logger.Infow("processed follow-ups",
		"due", len(jobs),
		"sent", response.Sent,
		"failed", response.Failed,
	)
	return response, nil
}

// processJob settles one reminder. Jobs whose invoice no longer needs chasing are
// canceled; delivery failures are recorded on the job.
func (s *followUpService) processJob(ctx context.Context, job *followup.Job, now time.Time) error {
	inv, err := s.InvoiceRepo.Get(ctx, job.InvoiceID)
	if err != nil && !ierr.IsNotFound(err) {
		return err
	}

	rule, err := s.getFollowUpRule(ctx)
	if err != nil {
		return err
	}

	if inv == nil || inv.Status == types.InvoiceStatusDraft || inv.IsFullyPaid() || !rule.Enabled {
		job.Status = types.FollowUpJobStatusCanceled
		job.Touch(ctx)
		return s.FollowUpRepo.UpdateJob(ctx, job)
	}

	delivered, deliveryErr := s.deliverReminder(ctx, invoice.WithDisplayStatus(inv, now))
	if deliveryErr != nil || !delivered {
		job.Status = types.FollowUpJobStatusFailed
		job.LastError = lo.ToPtr(errEmailDisabled)
		if deliveryErr != nil {
			job.LastError = lo.ToPtr(deliveryErr.Error())
		}
		job.Touch(ctx)
		return s.FollowUpRepo.UpdateJob(ctx, job)
	}

	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		job.Status = types.FollowUpJobStatusSent
		job.SentAt = lo.ToPtr(now)
		job.LastError = nil
		job.Touch(ctx)
		if err := s.FollowUpRepo.UpdateJob(ctx, job); err != nil {
			return err
		}
		return s.appendEvent(ctx, inv.ID, types.InvoiceEventReminderSent, types.Payload{
			"job_id":     job.ID,
			"day_offset": job.DayOffset,
		})
	})
}

// getFollowUpRule returns the caller's rule, or the disabled default when none is stored
func (p ServiceParams) getFollowUpRule(ctx context.Context) (*followup.Rule, error) {
	key := followUpRuleCacheKey(ctx)
	if cached, ok := p.Cache.Get(ctx, key); ok {
		if rule, ok := cached.(*followup.Rule); ok {
			return copyRule(rule), nil
		}
	}

	rule, err := p.FollowUpRepo.GetRule(ctx)
	if err != nil {
		if !ierr.IsNotFound(err) {
			return nil, err
		}
		rule = followup.DefaultRule(types.GetUserID(ctx))
	}

	p.Cache.Set(ctx, key, copyRule(rule), followUpRuleCacheTTL)
	return rule, nil
}

// scheduleFollowUps creates the reminder jobs the caller's rule yields for inv
func (p ServiceParams) scheduleFollowUps(ctx context.Context, inv *invoice.Invoice) (int, error) {
	rule, err := p.getFollowUpRule(ctx)
	if err != nil {
		return 0, err
	}

	jobs := rule.Schedule(inv, types.Now(ctx))
	if len(jobs) == 0 {
		return 0, nil
	}
	if err := p.FollowUpRepo.CreateJobs(ctx, jobs); err != nil {
		return 0, err
	}
	return len(jobs), nil
}

func (p ServiceParams) cancelFollowUps(ctx context.Context, invoiceID string) (int, error) {
	canceled, err := p.FollowUpRepo.CancelPending(ctx, invoiceID)
	if err != nil {
		return 0, err
	}
	if canceled > 0 {
		p.Logger.Debugw("canceled pending follow-ups",
			"invoice_id", invoiceID,
			"count", canceled,
		)
	}
	return canceled, nil
}

func followUpRuleCacheKey(ctx context.Context) string {
	return cache.GenerateKey(cache.PrefixFollowUpRule, types.GetUserID(ctx))
}

func copyRule(rule *followup.Rule) *followup.Rule {
	out := *rule
	out.DayOffsets = append([]int(nil), rule.DayOffsets...)
	return &out
}
