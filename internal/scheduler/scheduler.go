package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/invoicekit/invoicekit/internal/config"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/service"
	"github.com/invoicekit/invoicekit/internal/types"
	"go.uber.org/fx"
)

const defaultRunTimeout = 5 * time.Minute

// Job is a periodic ledger task
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs the periodic ledger jobs in-process. It drives the same service calls as
// the cron endpoints, for deployments without an external trigger.
type Scheduler struct {
	jobs       []Job
	runTimeout time.Duration
	log        *logger.Logger

	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a scheduler with the recurring, overdue and follow-up jobs. A job whose
// interval is not positive is not scheduled.
func New(
	cfg *config.Configuration,
	log *logger.Logger,
	recurringService service.RecurringService,
	invoiceService service.InvoiceService,
	followUpService service.FollowUpService,
) *Scheduler {
	jobs := []Job{
		{
			Name:     "recurring_invoices",
			Interval: cfg.Scheduler.RecurringInterval,
			Run: func(ctx context.Context) error {
				resp, err := recurringService.ProcessDueRecurringInvoices(ctx)
				if err != nil {
					return err
				}
				log.Infow("recurring invoices processed", "succeeded", resp.Succeeded, "failed", resp.Failed)
				return nil
			},
		},
		{
			Name:     "mark_overdue",
			Interval: cfg.Scheduler.OverdueInterval,
			Run: func(ctx context.Context) error {
				resp, err := invoiceService.MarkOverdueInvoices(ctx)
				if err != nil {
					return err
				}
				log.Infow("overdue invoices marked", "updated", resp.Updated, "failed", resp.Failed)
				return nil
			},
		},
		{
			Name:     "follow_ups",
			Interval: cfg.Scheduler.FollowUpInterval,
			Run: func(ctx context.Context) error {
				resp, err := followUpService.ProcessDueFollowUps(ctx)
				if err != nil {
					return err
				}
				log.Infow("follow-ups processed", "sent", resp.Sent, "failed", resp.Failed)
				return nil
			},
		},
	}

	return NewWithJobs(cfg.Scheduler.RunTimeout, log, jobs...)
}

// NewWithJobs creates a scheduler for arbitrary jobs
func NewWithJobs(runTimeout time.Duration, log *logger.Logger, jobs ...Job) *Scheduler {
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}
	return &Scheduler{
		jobs:       jobs,
		runTimeout: runTimeout,
		log:        log,
		stopCh:     make(chan struct{}),
	}
}

// Start launches one goroutine per job. Each job runs once immediately and then on
// every tick of its interval.
func (s *Scheduler) Start() {
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			s.log.Warnw("scheduler job disabled, no interval configured", "job", job.Name)
			continue
		}

		s.log.Infow("starting scheduler job", "job", job.Name, "interval", job.Interval.String())
		s.wg.Add(1)
		go s.loop(job)
	}
}

// Stop signals every job to exit and waits for in-flight runs to finish
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.log.Info("stopping scheduler")
		close(s.stopCh)
		s.wg.Wait()
	})
}

// RegisterWithLifecycle ties the scheduler to the fx application lifecycle
func (s *Scheduler) RegisterWithLifecycle(lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			done := make(chan struct{})
			go func() {
				s.Stop()
				close(done)
			}()

			select {
			case <-done:
				s.log.Info("scheduler stopped")
			case <-ctx.Done():
				s.log.Error("timeout while stopping scheduler")
			}
			return nil
		},
	})
}

func (s *Scheduler) loop(job Job) {
	defer s.wg.Done()

	s.RunOnce(job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(job)
		case <-s.stopCh:
			return
		}
	}
}

// RunOnce executes a single tick of a job bounded by the run timeout. Panics are
// recovered so one bad run does not kill the loop.
func (s *Scheduler) RunOnce(job Job) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	started := time.Now().UTC()
	ctx = types.WithNow(ctx, started)

	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("scheduler job panicked", "job", job.Name, "panic", r)
			err = errPanicked
		}
	}()

	if err = job.Run(ctx); err != nil {
		s.log.Errorw("scheduler job failed",
			"job", job.Name,
			"duration_ms", time.Since(started).Milliseconds(),
			"error", err,
		)
		return err
	}

	s.log.Debugw("scheduler job completed", "job", job.Name, "duration_ms", time.Since(started).Milliseconds())
	return nil
}
