package cron

import (
	"context"
	"log/slog"
	"time"

	"engagement-platform/internal/escalation"
	"engagement-platform/internal/sequence"
	"engagement-platform/pkg/logger"
)

// Dispatcher drains due scheduled messages. Satisfied by sequence.Scheduler.
type Dispatcher interface {
	DispatchDue(ctx context.Context, now time.Time) (sequence.DispatchStats, error)
}

// Sweeper expires stale claims and flags SLA breaches. Satisfied by
// escalation.Queue.
type Sweeper interface {
	SweepSLA(ctx context.Context) (escalation.SweepStats, error)
}

// PlanResetter performs the idempotent monthly counter reset.
type PlanResetter interface {
	ResetMonthly(ctx context.Context, now time.Time) (bool, error)
}

// Runner drives the periodic entry points on fixed cadences. Each tick body
// is also reachable through an internal HTTP trigger, and every entry point
// is idempotent under accidental double invocation, so overlapping runners
// are safe without a distributed lock.
type Runner struct {
	dispatcher Dispatcher
	sweeper    Sweeper
	plans      PlanResetter

	DispatchInterval time.Duration
	SweepInterval    time.Duration

	// ResetCheckInterval bounds how often the month-boundary check runs;
	// the persisted reset marker makes the check itself a no-op mid-month.
	ResetCheckInterval time.Duration

	clock func() time.Time
}

func NewRunner(dispatcher Dispatcher, sweeper Sweeper, planSvc PlanResetter) *Runner {
	return &Runner{
		dispatcher:         dispatcher,
		sweeper:            sweeper,
		plans:              planSvc,
		DispatchInterval:   time.Minute,
		SweepInterval:      5 * time.Minute,
		ResetCheckInterval: time.Hour,
		clock:              time.Now,
	}
}

// Start runs the three loops until ctx is cancelled. It blocks; run it in its
// own goroutine.
func (r *Runner) Start(ctx context.Context) {
	dispatch := time.NewTicker(r.DispatchInterval)
	defer dispatch.Stop()
	sweep := time.NewTicker(r.SweepInterval)
	defer sweep.Stop()
	reset := time.NewTicker(r.ResetCheckInterval)
	defer reset.Stop()

	log := logger.From(ctx)
	log.Info("cron runner started",
		slog.Duration("dispatch_interval", r.DispatchInterval),
		slog.Duration("sweep_interval", r.SweepInterval))

	for {
		select {
		case <-ctx.Done():
			log.Info("cron runner stopped")
			return

		case <-dispatch.C:
			r.RunDispatch(ctx)

		case <-sweep.C:
			r.RunSweep(ctx)

		case <-reset.C:
			r.RunMonthlyReset(ctx)
		}
	}
}

// RunDispatch drains due scheduled messages once.
func (r *Runner) RunDispatch(ctx context.Context) {
	stats, err := r.dispatcher.DispatchDue(ctx, r.clock().UTC())
	if err != nil {
		logger.From(ctx).Error("dispatch tick failed", slog.String("error", err.Error()))
		return
	}
	if stats.Due == 0 {
		return
	}
	logger.From(ctx).Info("dispatch tick",
		slog.Int("due", stats.Due),
		slog.Int("sent", stats.Sent),
		slog.Int("blocked", stats.Blocked),
		slog.Int("deferred", stats.Deferred),
		slog.Int("retried", stats.Retried),
		slog.Int("cancelled", stats.Cancelled))
}

// RunSweep runs the escalation SLA sweep once.
func (r *Runner) RunSweep(ctx context.Context) {
	stats, err := r.sweeper.SweepSLA(ctx)
	if err != nil {
		logger.From(ctx).Error("sla sweep failed", slog.String("error", err.Error()))
		return
	}
	if stats.Expired > 0 || stats.Breached > 0 {
		logger.From(ctx).Info("sla sweep",
			slog.Int("expired", stats.Expired),
			slog.Int("breached", stats.Breached))
	}
}

// RunMonthlyReset marks the month's counter rollover. The persisted marker
// makes repeats within a month no-ops; usage keys embed the month, so the
// rollover itself needs no per-client fan-out.
func (r *Runner) RunMonthlyReset(ctx context.Context) {
	now := r.clock().UTC()
	applied, err := r.plans.ResetMonthly(ctx, now)
	if err != nil {
		logger.From(ctx).Error("monthly reset failed", slog.String("error", err.Error()))
		return
	}
	if applied {
		logger.From(ctx).Info("monthly quota reset", slog.String("month", now.Format("2006-01")))
	}
}
