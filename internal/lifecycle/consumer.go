package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/karnotxyz/madara-orchestrator/internal/joberrors"
	"github.com/karnotxyz/madara-orchestrator/internal/logger"
	"github.com/karnotxyz/madara-orchestrator/internal/queue"
	"github.com/karnotxyz/madara-orchestrator/internal/registry"
)

// ConsumerPool runs a fixed number of goroutines polling one queue on a
// ticker, grounded on the teacher's Worker.Start ticker-and-goroutine-pool
// pattern (internal/jobs/worker.go), generalized from a single poller to a
// configurable pool size and parameterized over which queue/handler entry
// point it drives.
type ConsumerPool struct {
	q           queue.Queue
	queueName   string
	pollEvery   time.Duration
	concurrency int
	handle      func(ctx context.Context, jobID string) error
	log         *logger.Logger
}

func NewConsumerPool(q queue.Queue, queueName string, pollEvery time.Duration, concurrency int, handle func(ctx context.Context, jobID string) error, log *logger.Logger) *ConsumerPool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ConsumerPool{
		q:           q,
		queueName:   queueName,
		pollEvery:   pollEvery,
		concurrency: concurrency,
		handle:      handle,
		log:         log.With("component", "ConsumerPool", "queue", queueName),
	}
}

// Run blocks until ctx is cancelled, fanning out across p.concurrency
// goroutines each on its own ticker, and returns once all of them have
// exited. Intended to be invoked from an errgroup.Group.Go closure.
func (p *ConsumerPool) Run(ctx context.Context) error {
	workers := make(chan struct{}, p.concurrency)
	for i := 0; i < p.concurrency; i++ {
		go func() {
			p.loop(ctx)
			workers <- struct{}{}
		}()
	}
	for i := 0; i < p.concurrency; i++ {
		<-workers
	}
	return nil
}

func (p *ConsumerPool) loop(ctx context.Context) {
	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *ConsumerPool) poll(ctx context.Context) {
	msg, err := p.q.Consume(ctx, p.queueName)
	if err != nil {
		if !errors.Is(err, queue.ErrNoData) {
			p.log.Warn("consume failed", "error", err)
		}
		return
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.Error("handler panic", "job_id", msg.Payload.JobID, "panic", r)
				if err := p.q.Nack(ctx, p.queueName, msg.Handle); err != nil {
					p.log.Warn("nack after panic failed", "job_id", msg.Payload.JobID, "error", err)
				}
			}
		}()
		p.dispatch(ctx, msg)
	}()
}

// dispatch classifies the handler's error per spec.md §7's policy table and
// resolves the message: ack on success or on a guarded/no-op condition
// (InvalidState — a duplicate delivery should not be retried forever),
// dead-letter on NotFound or an unknown job type (neither condition
// resolves no matter how many times the message is redelivered), and
// nack on everything else so the broker's redelivery policy applies
// (StaleVersion, HandlerError, BackendUnavailable).
func (p *ConsumerPool) dispatch(ctx context.Context, msg *queue.Message) {
	err := p.handle(ctx, msg.Payload.JobID)
	switch {
	case err == nil:
		p.ack(ctx, msg)
	case errors.Is(err, joberrors.ErrInvalidState):
		p.log.Info("skipping duplicate delivery", "job_id", msg.Payload.JobID)
		p.ack(ctx, msg)
	case errors.Is(err, joberrors.ErrNotFound), errors.Is(err, registry.ErrUnknownJobType):
		p.log.Warn("dead-lettering message", "job_id", msg.Payload.JobID, "error", err)
		if err := p.q.SendToDeadLetter(ctx, p.queueName, msg.Handle, err.Error()); err != nil {
			p.log.Warn("dead-letter failed", "job_id", msg.Payload.JobID, "error", err)
		}
	default:
		p.log.Warn("nacking message for redelivery", "job_id", msg.Payload.JobID, "error", err)
		if err := p.q.Nack(ctx, p.queueName, msg.Handle); err != nil {
			p.log.Warn("nack failed", "job_id", msg.Payload.JobID, "error", err)
		}
	}
}

func (p *ConsumerPool) ack(ctx context.Context, msg *queue.Message) {
	if err := p.q.Ack(ctx, p.queueName, msg.Handle); err != nil {
		p.log.Warn("ack failed", "job_id", msg.Payload.JobID, "error", err)
	}
}
