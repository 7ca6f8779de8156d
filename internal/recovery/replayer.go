package recovery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/metrics"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/node"
)

// DefaultInterval is the replay period when none is configured.
const DefaultInterval = 5 * time.Second

// NodeApplier returns an ApplyFunc that sends each task to its target in reg.
func NodeApplier(reg *node.Registry) ApplyFunc {
	return func(ctx context.Context, task model.RecoveryTask) error {
		n, ok := reg.Get(task.Target)
		if !ok {
			return model.NewNodeUnavailable(task.Target, errors.New("node not registered"))
		}
		return node.Apply(ctx, n, task.Op)
	}
}

// Replayer runs replay cycles on a fixed interval.
type Replayer struct {
	queue    *Queue
	apply    ApplyFunc
	interval time.Duration
	clock    clockwork.Clock
	metrics  *metrics.Metrics
}

// ReplayerOption configures a Replayer.
type ReplayerOption func(*Replayer)

// WithReplayClock sets the clock driving the ticker.
func WithReplayClock(c clockwork.Clock) ReplayerOption {
	return func(r *Replayer) { r.clock = c }
}

// WithReplayMetrics enables cycle metrics.
func WithReplayMetrics(m *metrics.Metrics) ReplayerOption {
	return func(r *Replayer) { r.metrics = m }
}

// NewReplayer creates a replayer for q. A non-positive interval means
// DefaultInterval.
func NewReplayer(q *Queue, apply ApplyFunc, interval time.Duration, opts ...ReplayerOption) *Replayer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	r := &Replayer{
		queue:    q,
		apply:    apply,
		interval: interval,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Interval returns the replay period.
func (r *Replayer) Interval() time.Duration {
	return r.interval
}

// Run replays on every tick until ctx is cancelled. It always returns
// ctx.Err(). Cycle errors are logged, never fatal: recovery retries
// indefinitely.
func (r *Replayer) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	slog.Info("replay scheduler started", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("replay scheduler stopped")
			return ctx.Err()
		case <-ticker.Chan():
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				slog.Error("replay cycle failed", "error", err)
			}
		}
	}
}

// RunOnce performs one replay cycle. Every non-empty target is replayed
// concurrently, so an unreachable target never delays the others. Reports
// are returned in canonical node order.
func (r *Replayer) RunOnce(ctx context.Context) ([]ReplayReport, error) {
	targets := model.AllNodes()
	reports := make([]ReplayReport, len(targets))
	errs := make([]error, len(targets))

	var g errgroup.Group
	for i, target := range targets {
		i, target := i, target
		if len(r.queue.Pending(target)) == 0 {
			reports[i] = ReplayReport{Target: target}
			continue
		}

		g.Go(func() error {
			slog.Info("replay started", "target", target, "pending", len(r.queue.Pending(target)))
			report, err := r.queue.Replay(ctx, target, r.apply)
			reports[i] = report
			errs[i] = err

			switch {
			case err != nil:
				slog.Error("replay aborted", "target", target, "applied", report.Applied, "error", err)
			case report.Skipped:
				slog.Debug("replay skipped: previous cycle still running", "target", target)
			case report.Err != nil:
				slog.Warn("replay stopped at first failure",
					"target", target,
					"applied", report.Applied,
					"remaining", report.Remaining,
					"error", report.Err,
				)
			default:
				slog.Info("replay succeeded", "target", target, "applied", report.Applied)
			}
			return nil
		})
	}
	_ = g.Wait()

	r.metrics.ObserveCycle()
	return reports, errors.Join(errs...)
}
