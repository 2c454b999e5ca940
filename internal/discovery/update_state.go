package discovery

import (
	"context"
	"fmt"

	"github.com/karnotxyz/madara-orchestrator/internal/job"
	"github.com/karnotxyz/madara-orchestrator/internal/lifecycle"
	"github.com/karnotxyz/madara-orchestrator/internal/store"
)

// NewUpdateStateWorker fetches the latest successful StateTransition job
// and creates one for every ProofCreation completed with a greater
// internal id, per spec.md §4.5. If no prior successful StateTransition
// exists it yields without creating: bootstrap is operator-seeded.
func NewUpdateStateWorker(s store.Store, e *lifecycle.Engine) TickFunc {
	return func(ctx context.Context) (Summary, error) {
		open, err := gateOpen(ctx, s)
		if err != nil {
			return Summary{}, fmt.Errorf("update state worker: gate check: %w", err)
		}
		if !open {
			return Summary{SkippedGate: true}, nil
		}

		latestTransition, err := s.LatestByTypeAndStatus(ctx, job.TypeStateTransition, job.StatusCompleted)
		if err != nil {
			return Summary{}, fmt.Errorf("update state worker: latest state transition: %w", err)
		}
		if latestTransition == nil {
			return Summary{}, nil
		}

		candidates, err := s.JobsAfterInternalIDByType(ctx, job.TypeProofCreation, latestTransition.InternalID)
		if err != nil {
			return Summary{}, fmt.Errorf("update state worker: jobs after internal id: %w", err)
		}

		summary := Summary{}
		for _, upstream := range candidates {
			if upstream.Status != job.StatusCompleted {
				continue
			}
			existing, err := s.GetByInternalIDAndType(ctx, upstream.InternalID, job.TypeStateTransition)
			if err != nil {
				summary.Errors++
				continue
			}
			if existing != nil {
				continue
			}
			if _, err := e.CreateJob(ctx, job.TypeStateTransition, upstream.InternalID, upstream.Metadata.Clone()); err != nil {
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
