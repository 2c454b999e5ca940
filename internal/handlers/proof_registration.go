package handlers

import (
	"context"
	"fmt"

	"github.com/karnotxyz/madara-orchestrator/internal/clients/settlement"
	"github.com/karnotxyz/madara-orchestrator/internal/job"
	"github.com/karnotxyz/madara-orchestrator/internal/registry"
)

// ProofRegistration submits a completed proof through the settlement
// client's UpdateState (classic arm) and polls the resulting transaction
// for confirmation. Per spec.md §9 open
// question 2, its upstream is treated as ProofCreation, analogous to the
// other jobs_without_successor-driven workers.
type ProofRegistration struct {
	settlement          settlement.Client
	maxProcessAttempts  int
	maxVerifyAttempts   int
	pollingDelaySeconds int
}

func NewProofRegistration(s settlement.Client, maxProcessAttempts, maxVerifyAttempts, pollingDelaySeconds int) *ProofRegistration {
	return &ProofRegistration{
		settlement:          s,
		maxProcessAttempts:  maxProcessAttempts,
		maxVerifyAttempts:   maxVerifyAttempts,
		pollingDelaySeconds: pollingDelaySeconds,
	}
}

func (h *ProofRegistration) CreateJob(internalID string, metadata job.Metadata) (*job.Item, error) {
	return &job.Item{InternalID: internalID, Metadata: metadata.Clone()}, nil
}

func (h *ProofRegistration) ProcessJob(ctx context.Context, item *job.Item) (job.ExternalID, error) {
	receipt, err := h.settlement.UpdateState(ctx, settlement.ProgramOutput{
		Kind:    settlement.KindClassic,
		Program: []byte(item.InternalID),
	})
	if err != nil {
		return job.ExternalID{}, fmt.Errorf("proof registration: register proof: %w", err)
	}
	return job.NewExternalIDString(receipt.TxHash), nil
}

func (h *ProofRegistration) VerifyJob(ctx context.Context, item *job.Item) (registry.VerifyResult, error) {
	status, err := h.settlement.TxStatus(ctx, item.ExternalID.String())
	if err != nil {
		return registry.VerifyResult{}, fmt.Errorf("proof registration: tx status: %w", err)
	}
	switch status {
	case settlement.Confirmed:
		return registry.VerifyResult{Outcome: registry.Verified}, nil
	case settlement.Reverted:
		return registry.VerifyResult{Outcome: registry.Rejected, Reason: "registration transaction reverted"}, nil
	default:
		return registry.VerifyResult{Outcome: registry.Pending}, nil
	}
}

func (h *ProofRegistration) MaxProcessAttempts() int      { return h.maxProcessAttempts }
func (h *ProofRegistration) MaxVerificationAttempts() int { return h.maxVerifyAttempts }
func (h *ProofRegistration) VerificationPollingDelaySeconds() int {
	return h.pollingDelaySeconds
}
