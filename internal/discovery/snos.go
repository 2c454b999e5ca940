package discovery

import (
	"context"
	"fmt"

	"github.com/karnotxyz/madara-orchestrator/internal/clients/chainrpc"
	"github.com/karnotxyz/madara-orchestrator/internal/job"
	"github.com/karnotxyz/madara-orchestrator/internal/lifecycle"
	"github.com/karnotxyz/madara-orchestrator/internal/store"
)

// NewSnosWorker ticks against the upstream chain RPC's tip and creates one
// SnosRun job per un-processed block, per spec.md §4.5.
func NewSnosWorker(s store.Store, e *lifecycle.Engine, rpc chainrpc.Client) TickFunc {
	return func(ctx context.Context) (Summary, error) {
		open, err := gateOpen(ctx, s)
		if err != nil {
			return Summary{}, fmt.Errorf("snos worker: gate check: %w", err)
		}
		if !open {
			return Summary{SkippedGate: true}, nil
		}

		tip, err := rpc.GetBlockNumber(ctx)
		if err != nil {
			return Summary{}, fmt.Errorf("snos worker: get block number: %w", err)
		}

		latest, err := s.LatestByType(ctx, job.TypeSnosRun)
		if err != nil {
			return Summary{}, fmt.Errorf("snos worker: latest by type: %w", err)
		}
		next := uint64(0)
		if latest != nil {
			n, err := parseUint(latest.InternalID)
			if err != nil {
				return Summary{}, fmt.Errorf("snos worker: parse latest internal id %q: %w", latest.InternalID, err)
			}
			next = n + 1
		}

		summary := Summary{}
		for block := next; block <= tip; block++ {
			internalID := fmt.Sprintf("%d", block)
			if _, err := e.CreateJob(ctx, job.TypeSnosRun, internalID, job.Metadata{}); err != nil {
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
