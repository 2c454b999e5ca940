// Package registry resolves a job type to the Handler implementing that
// stage's create/process/verify operations, grounded on the teacher's
// runtime.Registry (internal/jobs/runtime/registry.go): a concurrency-safe
// map built once at startup, rejecting duplicate or nil registrations.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/karnotxyz/madara-orchestrator/internal/job"
)

// VerifyOutcome is the tri-state result of a verify_job poll.
type VerifyOutcome int

const (
	Verified VerifyOutcome = iota
	Rejected
	Pending
)

// VerifyResult carries the outcome plus, for Rejected, an operator-visible
// reason.
type VerifyResult struct {
	Outcome VerifyOutcome
	Reason  string
}

// Handler implements one job type's stage-specific behavior. Implementations
// must make ProcessJob idempotent on (job_type, internal_id): the broker's
// at-least-once delivery means a processing message can be redelivered.
type Handler interface {
	// CreateJob builds (but does not persist) the initial record for a new
	// job, optionally embedding handler-specific metadata keys.
	CreateJob(internalID string, metadata job.Metadata) (*job.Item, error)

	// ProcessJob performs the external side effect and returns the opaque
	// external id the stage's backing service assigned.
	ProcessJob(ctx context.Context, item *job.Item) (job.ExternalID, error)

	// VerifyJob polls the external service using item.ExternalID.
	VerifyJob(ctx context.Context, item *job.Item) (VerifyResult, error)

	MaxProcessAttempts() int
	MaxVerificationAttempts() int
	VerificationPollingDelaySeconds() int
}

// Registry is a concurrency-safe map[job.Type]Handler, built once at
// startup and read concurrently by the processing/verification consumer
// pools and every discovery worker.
type Registry struct {
	mu       sync.RWMutex
	handlers map[job.Type]Handler
}

func New() *Registry {
	return &Registry{handlers: make(map[job.Type]Handler)}
}

// Register fails fast on a nil handler or a duplicate registration for the
// same job type, matching the teacher's registry construction discipline:
// configuration mistakes surface at startup, not at first dispatch.
func (r *Registry) Register(jobType job.Type, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("registry: nil handler for job type %q", jobType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[jobType]; exists {
		return fmt.Errorf("registry: duplicate handler registration for job type %q", jobType)
	}
	r.handlers[jobType] = handler
	return nil
}

// ErrUnknownJobType is returned by Get when no handler is registered for the
// requested job type. Per spec, this is a registry miss: fatal for the
// message (dead-lettered).
var ErrUnknownJobType = fmt.Errorf("registry: no handler registered for job type")

func (r *Registry) Get(jobType job.Type) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
	}
	return h, nil
}
