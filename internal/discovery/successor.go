package discovery

import (
	"context"
	"fmt"

	"github.com/karnotxyz/madara-orchestrator/internal/job"
	"github.com/karnotxyz/madara-orchestrator/internal/lifecycle"
	"github.com/karnotxyz/madara-orchestrator/internal/store"
)

// newSuccessorWorker builds the TickFunc shared by ProvingWorker,
// DataSubmissionWorker and ProofRegistrationWorker: each queries
// jobs_without_successor(fromType, Completed, toType) and creates toType
// for every result, copying the upstream job's metadata, per spec.md §4.5.
func newSuccessorWorker(s store.Store, e *lifecycle.Engine, fromType, toType job.Type) TickFunc {
	return func(ctx context.Context) (Summary, error) {
		open, err := gateOpen(ctx, s)
		if err != nil {
			return Summary{}, fmt.Errorf("%s worker: gate check: %w", toType, err)
		}
		if !open {
			return Summary{SkippedGate: true}, nil
		}

		candidates, err := s.JobsWithoutSuccessor(ctx, fromType, job.StatusCompleted, toType)
		if err != nil {
			return Summary{}, fmt.Errorf("%s worker: jobs without successor: %w", toType, err)
		}

		summary := Summary{}
		for _, upstream := range candidates {
			if _, err := e.CreateJob(ctx, toType, upstream.InternalID, upstream.Metadata.Clone()); err != nil {
				if isIgnorableCreateError(err) {
					continue
				}
				summary.Errors++
				continue
			}
			summary.JobsCreated++
		}
		return summary, nil
	}
}

// NewProvingWorker creates a ProofCreation job for every SnosRun job
// completed without one.
func NewProvingWorker(s store.Store, e *lifecycle.Engine) TickFunc {
	return newSuccessorWorker(s, e, job.TypeSnosRun, job.TypeProofCreation)
}

// NewDataSubmissionWorker creates a DataSubmission job for every
// ProofCreation job completed without one.
func NewDataSubmissionWorker(s store.Store, e *lifecycle.Engine) TickFunc {
	return newSuccessorWorker(s, e, job.TypeProofCreation, job.TypeDataSubmission)
}

// NewProofRegistrationWorker creates a ProofRegistration job for every
// ProofCreation job completed without one. Per spec.md §9 open question 2,
// some deployments skip on-chain proof registration entirely; callers
// that want that behavior simply do not start this worker.
func NewProofRegistrationWorker(s store.Store, e *lifecycle.Engine) TickFunc {
	return newSuccessorWorker(s, e, job.TypeProofCreation, job.TypeProofRegistration)
}
