package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/invoicekit/invoicekit/internal/domain/followup"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/samber/lo"
)

// InMemoryFollowUpStore implements followup.Repository. Rules are keyed by user id.
type InMemoryFollowUpStore struct {
	rules *InMemoryStore[*followup.Rule]
	jobs  *InMemoryStore[*followup.Job]

	mu        sync.Mutex
	ruleReads int
}

var _ followup.Repository = (*InMemoryFollowUpStore)(nil)

func NewInMemoryFollowUpStore() *InMemoryFollowUpStore {
	return &InMemoryFollowUpStore{
		rules: NewInMemoryStore(func(r *followup.Rule) *followup.Rule {
			out := *r
			out.DayOffsets = append([]int(nil), r.DayOffsets...)
			return &out
		}),
		jobs: NewInMemoryStore(func(j *followup.Job) *followup.Job {
			return lo.ToPtr(*j)
		}),
	}
}

func (s *InMemoryFollowUpStore) Snapshot() any {
	return [2]any{s.rules.Snapshot(), s.jobs.Snapshot()}
}

func (s *InMemoryFollowUpStore) Restore(snapshot any) {
	snaps := snapshot.([2]any)
	s.rules.Restore(snaps[0])
	s.jobs.Restore(snaps[1])
}

func (s *InMemoryFollowUpStore) Clear() {
	s.rules.Clear()
	s.jobs.Clear()
	s.mu.Lock()
	s.ruleReads = 0
	s.mu.Unlock()
}

// RuleReads counts GetRule calls that reached the store
func (s *InMemoryFollowUpStore) RuleReads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ruleReads
}

func (s *InMemoryFollowUpStore) GetRule(ctx context.Context) (*followup.Rule, error) {
	s.mu.Lock()
	s.ruleReads++
	s.mu.Unlock()

	userID := types.GetUserID(ctx)
	rule, err := s.rules.Get(ctx, userID)
	if err != nil {
		return nil, notFound("Follow-up rule", userID)
	}
	return rule, nil
}

func (s *InMemoryFollowUpStore) UpsertRule(ctx context.Context, rule *followup.Rule) error {
	userID := types.GetUserID(ctx)
	rule.UserID = userID
	if existing, err := s.rules.Get(ctx, userID); err == nil {
		rule.ID = existing.ID
		rule.CreatedAt = existing.CreatedAt
		rule.CreatedBy = existing.CreatedBy
		return s.rules.Update(ctx, userID, rule)
	}
	return s.rules.Create(ctx, userID, rule)
}

func (s *InMemoryFollowUpStore) CreateJobs(ctx context.Context, jobs []*followup.Job) error {
	for _, job := range jobs {
		if err := s.jobs.Create(ctx, job.ID, job); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryFollowUpStore) CancelPending(ctx context.Context, invoiceID string) (int, error) {
	pending, err := s.jobs.List(ctx, nil, func(ctx context.Context, j *followup.Job, _ interface{}) bool {
		return j.InvoiceID == invoiceID &&
			j.Status == types.FollowUpJobStatusPending &&
			CheckUserFilter(ctx, j.UserID)
	}, nil)
	if err != nil {
		return 0, err
	}
	now := types.Now(ctx)
	for _, job := range pending {
		job.Status = types.FollowUpJobStatusCanceled
		job.UpdatedAt = now
		job.UpdatedBy = types.GetUserID(ctx)
		if err := s.jobs.Update(ctx, job.ID, job); err != nil {
			return 0, err
		}
	}
	return len(pending), nil
}

func (s *InMemoryFollowUpStore) ListDuePending(ctx context.Context, now time.Time, limit int) ([]*followup.Job, error) {
	jobs, err := s.jobs.List(ctx, nil, func(_ context.Context, j *followup.Job, _ interface{}) bool {
		return j.Status == types.FollowUpJobStatusPending && !j.ScheduledFor.After(now)
	}, jobSortFn)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *InMemoryFollowUpStore) UpdateJob(ctx context.Context, job *followup.Job) error {
	existing, err := s.jobs.Get(ctx, job.ID)
	if err != nil || !CheckUserFilter(ctx, existing.UserID) {
		return notFound("Follow-up job", job.ID)
	}
	return s.jobs.Update(ctx, job.ID, job)
}

func (s *InMemoryFollowUpStore) ListByInvoice(ctx context.Context, invoiceID string) ([]*followup.Job, error) {
	return s.jobs.List(ctx, nil, func(ctx context.Context, j *followup.Job, _ interface{}) bool {
		return j.InvoiceID == invoiceID && CheckUserFilter(ctx, j.UserID)
	}, jobSortFn)
}

func jobSortFn(i, j *followup.Job) bool {
	if i.ScheduledFor.Equal(j.ScheduledFor) {
		return i.ID < j.ID
	}
	return i.ScheduledFor.Before(j.ScheduledFor)
}
