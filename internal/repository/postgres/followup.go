package postgres

import (
	"context"
	"time"

	"github.com/invoicekit/invoicekit/internal/domain/followup"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/postgres"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/lib/pq"
	"github.com/samber/lo"
)

const followUpJobColumns = `id, invoice_id, user_id, rule_id, day_offset, scheduled_for, status, sent_at, last_error,
	created_at, updated_at, created_by, updated_by`

type followUpRuleRow struct {
	ID         string        `db:"id"`
	Enabled    bool          `db:"enabled"`
	Trigger    string        `db:"trigger_type"`
	DayOffsets pq.Int64Array `db:"day_offsets"`
	types.BaseModel
}

type followUpRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewFollowUpRepository(db *postgres.DB, logger *logger.Logger) followup.Repository {
	return &followUpRepository{db: db, logger: logger}
}

func (r *followUpRepository) GetRule(ctx context.Context) (*followup.Rule, error) {
	var row followUpRuleRow
	query := `SELECT id, user_id, enabled, trigger_type, day_offsets, created_at, updated_at, created_by, updated_by
		FROM follow_up_rules WHERE user_id = $1`
	userID := types.GetUserID(ctx)
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &row, query, userID); err != nil {
		return nil, notFoundOr(err, "Follow-up rule", userID)
	}
	return &followup.Rule{
		ID:      row.ID,
		Enabled: row.Enabled,
		Trigger: types.FollowUpTrigger(row.Trigger),
		DayOffsets: lo.Map(row.DayOffsets, func(v int64, _ int) int {
			return int(v)
		}),
		BaseModel: row.BaseModel,
	}, nil
}

func (r *followUpRepository) UpsertRule(ctx context.Context, rule *followup.Rule) error {
	query := `
		INSERT INTO follow_up_rules (id, user_id, enabled, trigger_type, day_offsets, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			trigger_type = EXCLUDED.trigger_type,
			day_offsets = EXCLUDED.day_offsets,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by
		RETURNING id, created_at, created_by`

	offsets := pq.Int64Array(lo.Map(rule.DayOffsets, func(v int, _ int) int64 {
		return int64(v)
	}))

	row := r.db.GetQuerier(ctx).QueryRowxContext(ctx, query,
		rule.ID, rule.UserID, rule.Enabled, string(rule.Trigger), offsets,
		rule.CreatedAt, rule.UpdatedAt, rule.CreatedBy, rule.UpdatedBy)
	if err := row.Scan(&rule.ID, &rule.CreatedAt, &rule.CreatedBy); err != nil {
		return dbError(err, "failed to upsert follow-up rule")
	}
	return nil
}

func (r *followUpRepository) CreateJobs(ctx context.Context, jobs []*followup.Job) error {
	query := `
		INSERT INTO follow_up_jobs (` + followUpJobColumns + `) VALUES (
			:id, :invoice_id, :user_id, :rule_id, :day_offset, :scheduled_for, :status, :sent_at, :last_error,
			:created_at, :updated_at, :created_by, :updated_by
		)`

	for _, job := range jobs {
		if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
			return dbError(err, "failed to create follow-up job")
		}
	}
	return nil
}

func (r *followUpRepository) CancelPending(ctx context.Context, invoiceID string) (int, error) {
	query := `
		UPDATE follow_up_jobs SET status = $1, updated_at = $2, updated_by = $3
		WHERE invoice_id = $4 AND user_id = $5 AND status = $6`

	userID := types.GetUserID(ctx)
	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		string(types.FollowUpJobStatusCanceled), types.Now(ctx), userID,
		invoiceID, userID, string(types.FollowUpJobStatusPending))
	if err != nil {
		return 0, dbError(err, "failed to cancel follow-up jobs")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, dbError(err, "failed to read affected rows")
	}
	return int(n), nil
}

func (r *followUpRepository) ListDuePending(ctx context.Context, now time.Time, limit int) ([]*followup.Job, error) {
	query := `SELECT ` + followUpJobColumns + ` FROM follow_up_jobs
		WHERE status = $1 AND scheduled_for <= $2
		ORDER BY scheduled_for ASC, id ASC
		LIMIT $3`

	var jobs []*followup.Job
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &jobs, query,
		string(types.FollowUpJobStatusPending), now, limit); err != nil {
		return nil, dbError(err, "failed to list due follow-up jobs")
	}
	return jobs, nil
}

func (r *followUpRepository) UpdateJob(ctx context.Context, job *followup.Job) error {
	query := `
		UPDATE follow_up_jobs SET
			status = :status,
			sent_at = :sent_at,
			last_error = :last_error,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND user_id = :user_id`

	result, err := r.db.NamedExecContext(ctx, query, job)
	if err != nil {
		return dbError(err, "failed to update follow-up job")
	}
	return requireAffected(result, "Follow-up job", job.ID)
}

func (r *followUpRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]*followup.Job, error) {
	query := `SELECT ` + followUpJobColumns + ` FROM follow_up_jobs
		WHERE invoice_id = $1 AND user_id = $2
		ORDER BY scheduled_for ASC, id ASC`

	var jobs []*followup.Job
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &jobs, query, invoiceID, types.GetUserID(ctx)); err != nil {
		return nil, dbError(err, "failed to list follow-up jobs")
	}
	return jobs, nil
}
