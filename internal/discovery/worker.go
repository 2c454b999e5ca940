// Package discovery implements the five periodic discovery workers from
// spec.md §4.5: each finds upstream-complete work lacking a successor job
// and calls create_job for it, gated by a shared VerificationFailed
// circuit breaker. Workers are time.Ticker-driven goroutines, grounded on
// the teacher's Worker.Start pattern (internal/jobs/worker.go),
// generalized from a single poller into five independently configurable
// tickers sharing one runner shape.
package discovery

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/karnotxyz/madara-orchestrator/internal/joberrors"
	"github.com/karnotxyz/madara-orchestrator/internal/logger"
)

// Summary reports one tick's outcome for the worker's log line.
type Summary struct {
	JobsCreated int
	SkippedGate bool
	Errors      int
}

// TickFunc performs one bounded unit of discovery work.
type TickFunc func(ctx context.Context) (Summary, error)

// Runner drives a TickFunc on a fixed interval until its context is
// cancelled. Each tick is independent: a tick's error never stops the
// ticker, matching spec.md §4.5's "continue to the next tick regardless
// of individual create_job failures".
type Runner struct {
	name     string
	interval time.Duration
	tick     TickFunc
	log      *logger.Logger
}

func NewRunner(name string, interval time.Duration, tick TickFunc, log *logger.Logger) *Runner {
	return &Runner{name: name, interval: interval, tick: tick, log: log.With("component", "DiscoveryWorker", "worker", name)}
}

// Run blocks until ctx is cancelled. Intended to be invoked from an
// errgroup.Group.Go closure alongside the queue consumer pools.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	ctx, span := otel.Tracer("github.com/karnotxyz/madara-orchestrator/internal/discovery").Start(ctx, "discovery.tick",
		trace.WithAttributes(attribute.String("discovery.worker", r.name)))
	defer span.End()

	summary, err := r.tick(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.log.Warn("discovery tick failed", "error", err)
		return
	}
	if summary.SkippedGate {
		r.log.Info("discovery tick skipped: verification-failed gate closed")
		return
	}
	r.log.Info("discovery tick complete", "jobs_created", summary.JobsCreated, "errors", summary.Errors)
}

// isIgnorableCreateError reports whether a create_job failure is expected
// under concurrent discovery (another instance raced to create the same
// job). Workers skip such a job without logging it or counting it as an
// error.
func isIgnorableCreateError(err error) bool {
	return errors.Is(err, joberrors.ErrDuplicate)
}
