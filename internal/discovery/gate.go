package discovery

import (
	"context"

	"github.com/karnotxyz/madara-orchestrator/internal/job"
	"github.com/karnotxyz/madara-orchestrator/internal/store"
)

// gateOpen reports whether discovery is allowed to create new work. All
// five workers share this admission-control circuit breaker: if any job is
// currently in VerificationFailed, every worker yields without scheduling
// new work, per spec.md §4.5. The gate is intentionally broad (see
// spec.md §9 open question 3: revisit per-type gating).
func gateOpen(ctx context.Context, s store.Store) (bool, error) {
	jobs, err := s.JobsByStatuses(ctx, []job.Status{job.StatusVerificationFailed}, 1)
	if err != nil {
		return false, err
	}
	return len(jobs) == 0, nil
}
