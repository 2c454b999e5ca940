// Package lifecycle implements the job lifecycle engine: create_job,
// process_job, verify_job and handle_job_failure (spec.md §4.4), each
// entry point wrapped in an OpenTelemetry span and a structured log line,
// grounded on the teacher's runtime.Context.Progress/Fail/Succeed
// side-effect pattern (internal/jobs/runtime/context.go) adapted to emit
// through the structured logger rather than an SSE notifier.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/karnotxyz/madara-orchestrator/internal/job"
	"github.com/karnotxyz/madara-orchestrator/internal/joberrors"
	"github.com/karnotxyz/madara-orchestrator/internal/logger"
	"github.com/karnotxyz/madara-orchestrator/internal/queue"
	"github.com/karnotxyz/madara-orchestrator/internal/registry"
	"github.com/karnotxyz/madara-orchestrator/internal/store"
)

var tracer = otel.Tracer("github.com/karnotxyz/madara-orchestrator/internal/lifecycle")

// Engine is the lifecycle engine: the sole writer of job.Item state
// transitions. It holds no mutable state of its own beyond its
// collaborators; every transition reloads and optimistically updates,
// per spec.md §5's suspension-point discipline.
type Engine struct {
	store    store.Store
	queue    queue.Queue
	registry *registry.Registry
	log      *logger.Logger
}

func NewEngine(s store.Store, q queue.Queue, r *registry.Registry, log *logger.Logger) *Engine {
	return &Engine{store: s, queue: q, registry: r, log: log.With("component", "LifecycleEngine")}
}

// CreateJob implements spec.md §4.4.1.
func (e *Engine) CreateJob(ctx context.Context, jobType job.Type, internalID string, metadata job.Metadata) (*job.Item, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.create_job", trace.WithAttributes(
		attribute.String("job.type", string(jobType)),
		attribute.String("job.internal_id", internalID),
	))
	defer span.End()

	existing, err := e.store.GetByInternalIDAndType(ctx, internalID, jobType)
	if err != nil {
		return e.fail(span, err, "create_job: lookup existing")
	}
	if existing != nil {
		return e.fail(span, joberrors.ErrDuplicate, "create_job: duplicate")
	}

	h, err := e.registry.Get(jobType)
	if err != nil {
		return e.fail(span, err, "create_job: resolve handler")
	}

	item, err := h.CreateJob(internalID, metadata)
	if err != nil {
		return e.fail(span, err, "create_job: handler")
	}
	item.JobType = jobType
	item.InternalID = internalID
	item.Status = job.StatusCreated
	item.Version = 0
	meta := item.Metadata
	if meta == nil {
		meta = job.Metadata{}
	}
	meta = job.WithMetadata(meta, job.MetaProcessAttempt, "0")
	meta = job.WithMetadata(meta, job.MetaVerificationAttempt, "0")
	item.Metadata = meta

	created, err := e.store.Create(ctx, item)
	if err != nil {
		return e.fail(span, err, "create_job: persist")
	}

	if err := e.queue.Enqueue(ctx, queue.Processing, queue.Payload{JobID: created.ID, JobType: string(jobType)}, 0); err != nil {
		return e.fail(span, fmt.Errorf("%w: %v", joberrors.ErrBackendUnavailable, err), "create_job: enqueue")
	}

	e.log.Info("job created", "job_id", created.ID, "job_type", string(jobType), "internal_id", internalID)
	span.SetStatus(codes.Ok, "")
	return created, nil
}

// ProcessJob implements spec.md §4.4.2.
func (e *Engine) ProcessJob(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "lifecycle.process_job", trace.WithAttributes(attribute.String("job.id", id)))
	defer span.End()

	item, err := e.store.GetByID(ctx, id)
	if err != nil {
		return e.failErr(span, err, "process_job: load")
	}
	if item == nil {
		return e.failErr(span, joberrors.ErrNotFound, "process_job: not found")
	}
	if item.Status != job.StatusCreated && item.Status != job.StatusVerificationFailed {
		return e.failErr(span, joberrors.ErrInvalidState, "process_job: guard")
	}

	locked, err := e.store.UpdateStatus(ctx, item, job.StatusLockedForProcessing)
	if err != nil {
		// StaleVersion here is the two-worker race defense: exactly one
		// caller wins the transition, the other aborts cleanly.
		return e.failErr(span, err, "process_job: optimistic lock")
	}

	h, err := e.registry.Get(locked.JobType)
	if err != nil {
		return e.failErr(span, err, "process_job: resolve handler")
	}

	externalID, procErr := h.ProcessJob(ctx, locked)
	if procErr != nil {
		// Status stays LockedForProcessing: the processing-side attempt cap
		// is not enforced here, only recorded. A redelivered processing
		// message for this job then fails the Created/VerificationFailed
		// guard with ErrInvalidState, so the job stays locked until the
		// operator-run reaper moves it.
		nextMeta := job.IncrementMetadataKey(locked.Metadata, job.MetaProcessAttempt)
		if _, err := e.store.UpdateMetadata(ctx, locked, nextMeta); err != nil {
			e.log.Warn("process_job: failed to persist attempt increment", "job_id", id, "error", err)
		}
		wrapped := joberrors.NewHandlerError("process_job failed", procErr)
		e.log.Error("process_job: handler error", "job_id", id, "error", wrapped)
		span.RecordError(wrapped)
		span.SetStatus(codes.Error, wrapped.Error())
		return wrapped
	}

	status := job.StatusPendingVerification
	nextMeta := job.IncrementMetadataKey(locked.Metadata, job.MetaProcessAttempt)
	updated, err := e.store.Update(ctx, locked, store.Patch{
		Status:     &status,
		ExternalID: &externalID,
		Metadata:   nextMeta,
	})
	if err != nil {
		return e.failErr(span, err, "process_job: persist success")
	}

	delay := time.Duration(h.VerificationPollingDelaySeconds()) * time.Second
	if err := e.queue.Enqueue(ctx, queue.Verification, queue.Payload{JobID: updated.ID, JobType: string(updated.JobType)}, delay); err != nil {
		return e.failErr(span, fmt.Errorf("%w: %v", joberrors.ErrBackendUnavailable, err), "process_job: enqueue verification")
	}

	e.log.Info("job processed", "job_id", id, "external_id", externalID.String(), "status", string(status))
	span.SetStatus(codes.Ok, "")
	return nil
}

// VerifyJob implements spec.md §4.4.3.
func (e *Engine) VerifyJob(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "lifecycle.verify_job", trace.WithAttributes(attribute.String("job.id", id)))
	defer span.End()

	item, err := e.store.GetByID(ctx, id)
	if err != nil {
		return e.failErr(span, err, "verify_job: load")
	}
	if item == nil {
		return e.failErr(span, joberrors.ErrNotFound, "verify_job: not found")
	}
	if item.Status != job.StatusPendingVerification {
		return e.failErr(span, joberrors.ErrInvalidState, "verify_job: guard")
	}

	h, err := e.registry.Get(item.JobType)
	if err != nil {
		return e.failErr(span, err, "verify_job: resolve handler")
	}

	result, verErr := h.VerifyJob(ctx, item)
	if verErr != nil {
		wrapped := joberrors.NewHandlerError("verify_job failed", verErr)
		e.log.Error("verify_job: handler error", "job_id", id, "error", wrapped)
		span.RecordError(wrapped)
		span.SetStatus(codes.Error, wrapped.Error())
		return wrapped
	}

	switch result.Outcome {
	case registry.Verified:
		completed := job.StatusCompleted
		if _, err := e.store.UpdateStatus(ctx, item, completed); err != nil {
			return e.failErr(span, err, "verify_job: persist verified")
		}
		e.log.Info("job verified", "job_id", id)

	case registry.Rejected:
		failedStatus := job.StatusVerificationFailed
		updated, err := e.store.UpdateStatus(ctx, item, failedStatus)
		if err != nil {
			return e.failErr(span, err, "verify_job: persist rejected")
		}
		processAttempts := job.AttemptCount(updated.Metadata, job.MetaProcessAttempt)
		if processAttempts < h.MaxProcessAttempts() {
			if err := e.queue.Enqueue(ctx, queue.Processing, queue.Payload{JobID: updated.ID, JobType: string(updated.JobType)}, 0); err != nil {
				return e.failErr(span, fmt.Errorf("%w: %v", joberrors.ErrBackendUnavailable, err), "verify_job: re-enqueue processing")
			}
		}
		e.log.Info("job rejected", "job_id", id, "reason", result.Reason, "process_attempt", processAttempts)

	case registry.Pending:
		nextMeta := job.IncrementMetadataKey(item.Metadata, job.MetaVerificationAttempt)
		verificationAttempts := job.AttemptCount(nextMeta, job.MetaVerificationAttempt)
		if verificationAttempts < h.MaxVerificationAttempts() {
			if _, err := e.store.UpdateMetadata(ctx, item, nextMeta); err != nil {
				return e.failErr(span, err, "verify_job: persist pending")
			}
			delay := time.Duration(h.VerificationPollingDelaySeconds()) * time.Second
			if err := e.queue.Enqueue(ctx, queue.Verification, queue.Payload{JobID: item.ID, JobType: string(item.JobType)}, delay); err != nil {
				return e.failErr(span, fmt.Errorf("%w: %v", joberrors.ErrBackendUnavailable, err), "verify_job: re-enqueue verification")
			}
		} else {
			timeoutStatus := job.StatusVerificationTimeout
			if _, err := e.store.Update(ctx, item, store.Patch{Status: &timeoutStatus, Metadata: nextMeta}); err != nil {
				return e.failErr(span, err, "verify_job: persist timeout")
			}
		}
		e.log.Info("job verification pending", "job_id", id, "verification_attempt", verificationAttempts)

	default:
		return e.failErr(span, fmt.Errorf("verify_job: unknown outcome %d", result.Outcome), "verify_job: outcome")
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// HandleJobFailure implements spec.md §4.4.4, the dead-letter sink.
func (e *Engine) HandleJobFailure(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "lifecycle.handle_job_failure", trace.WithAttributes(attribute.String("job.id", id)))
	defer span.End()

	item, err := e.store.GetByID(ctx, id)
	if err != nil {
		return e.failErr(span, err, "handle_job_failure: load")
	}
	if item == nil {
		return e.failErr(span, joberrors.ErrNotFound, "handle_job_failure: not found")
	}
	if item.Status.Terminal() {
		err := fmt.Errorf("%w: Invalid state exists on DL queue: %s", joberrors.ErrInvalidState, item.Status)
		return e.failErr(span, err, "handle_job_failure: guard")
	}

	lastStatus := item.Status
	failedStatus := job.StatusFailed
	nextMeta := job.WithMetadata(item.Metadata, job.MetaLastJobStatus, string(lastStatus))
	if _, err := e.store.Update(ctx, item, store.Patch{Status: &failedStatus, Metadata: nextMeta}); err != nil {
		return e.failErr(span, err, "handle_job_failure: persist")
	}

	e.log.Warn("job sent to dead letter", "job_id", id, "last_status", string(lastStatus))
	span.SetStatus(codes.Ok, "")
	return nil
}

func (e *Engine) fail(span trace.Span, err error, msg string) (*job.Item, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.log.Warn(msg, "error", err)
	return nil, err
}

func (e *Engine) failErr(span trace.Span, err error, msg string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.log.Warn(msg, "error", err)
	return err
}
