package followup

import (
	"testing"
	"time"

	"github.com/invoicekit/invoicekit/internal/domain/invoice"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRule_Schedule(t *testing.T) {
	sentAt := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	inv := &invoice.Invoice{
		ID:      "inv_test",
		SentAt:  lo.ToPtr(sentAt),
		DueDate: time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC),
		BaseModel: types.BaseModel{
			UserID: "user_1",
		},
	}

	t.Run("after sent", func(t *testing.T) {
		rule := &Rule{ID: "fur_1", Enabled: true, Trigger: types.FollowUpTriggerAfterSent, DayOffsets: []int{7, 3, 3}}
		jobs := rule.Schedule(inv, sentAt)

		require.Len(t, jobs, 2)
		assert.Equal(t, sentAt.AddDate(0, 0, 3), jobs[0].ScheduledFor)
		assert.Equal(t, sentAt.AddDate(0, 0, 7), jobs[1].ScheduledFor)
		for _, job := range jobs {
			assert.Equal(t, types.FollowUpJobStatusPending, job.Status)
			assert.Equal(t, "inv_test", job.InvoiceID)
			assert.Equal(t, "user_1", job.UserID)
		}
	})

	t.Run("after due", func(t *testing.T) {
		rule := &Rule{Enabled: true, Trigger: types.FollowUpTriggerAfterDue, DayOffsets: []int{0, 5}}
		jobs := rule.Schedule(inv, sentAt)

		require.Len(t, jobs, 2)
		assert.Equal(t, inv.DueDate, jobs[0].ScheduledFor)
		assert.Equal(t, inv.DueDate.AddDate(0, 0, 5), jobs[1].ScheduledFor)
	})

	t.Run("past reminders are dropped", func(t *testing.T) {
		rule := &Rule{Enabled: true, Trigger: types.FollowUpTriggerAfterDue, DayOffsets: []int{1, 30}}
		jobs := rule.Schedule(inv, inv.DueDate.AddDate(0, 0, 10))

		require.Len(t, jobs, 1)
		assert.Equal(t, 30, jobs[0].DayOffset)
	})

	t.Run("disabled rule schedules nothing", func(t *testing.T) {
		rule := &Rule{Enabled: false, Trigger: types.FollowUpTriggerAfterSent, DayOffsets: []int{1}}
		assert.Empty(t, rule.Schedule(inv, sentAt))
	})
}

func TestRule_Validate(t *testing.T) {
	assert.NoError(t, (&Rule{Trigger: types.FollowUpTriggerAfterDue, DayOffsets: []int{0, 365}}).Validate())
	assert.Error(t, (&Rule{Trigger: types.FollowUpTriggerAfterDue, DayOffsets: []int{-1}}).Validate())
	assert.Error(t, (&Rule{Trigger: "whenever", DayOffsets: []int{1}}).Validate())
}
