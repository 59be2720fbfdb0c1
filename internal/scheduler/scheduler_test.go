package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	ierr "github.com/invoicekit/invoicekit/internal/errors"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOnce(t *testing.T) {
	s := NewWithJobs(50*time.Millisecond, logger.NewNoopLogger())

	t.Run("pins the clock and bounds the run", func(t *testing.T) {
		var pinned time.Time
		var hasDeadline bool
		err := s.RunOnce(Job{Name: "clock_check", Run: func(ctx context.Context) error {
			pinned = types.Now(ctx)
			_, hasDeadline = ctx.Deadline()
			return nil
		}})
		require.NoError(t, err)
		assert.True(t, hasDeadline)
		assert.WithinDuration(t, time.Now().UTC(), pinned, time.Second)
	})

	t.Run("times out", func(t *testing.T) {
		err := s.RunOnce(Job{Name: "slow", Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("reports errors", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.RunOnce(Job{Name: "failing", Run: func(ctx context.Context) error { return boom }})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("recovers panics", func(t *testing.T) {
		err := s.RunOnce(Job{Name: "panicking", Run: func(ctx context.Context) error { panic("bad run") }})
		assert.True(t, ierr.Is(err, ierr.ErrSystem))
	})
}

func TestStartStop(t *testing.T) {
	var ticks, disabled atomic.Int32

	s := NewWithJobs(time.Second, logger.NewNoopLogger(),
		Job{Name: "fast", Interval: 5 * time.Millisecond, Run: func(ctx context.Context) error {
			ticks.Add(1)
			return nil
		}},
		Job{Name: "disabled", Interval: 0, Run: func(ctx context.Context) error {
			disabled.Add(1)
			return nil
		}},
	)

	s.Start()
	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	stopped := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, ticks.Load())
	assert.Zero(t, disabled.Load())
}
