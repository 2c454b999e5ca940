package handlers

import (
	"context"
	"fmt"

	"github.com/karnotxyz/madara-orchestrator/internal/clients/prover"
	"github.com/karnotxyz/madara-orchestrator/internal/job"
	"github.com/karnotxyz/madara-orchestrator/internal/registry"
)

// ProofCreation submits SNOS output to the prover and polls for the
// resulting proof.
type ProofCreation struct {
	prover              prover.Client
	maxProcessAttempts  int
	maxVerifyAttempts   int
	pollingDelaySeconds int
}

func NewProofCreation(p prover.Client, maxProcessAttempts, maxVerifyAttempts, pollingDelaySeconds int) *ProofCreation {
	return &ProofCreation{
		prover:              p,
		maxProcessAttempts:  maxProcessAttempts,
		maxVerifyAttempts:   maxVerifyAttempts,
		pollingDelaySeconds: pollingDelaySeconds,
	}
}

func (h *ProofCreation) CreateJob(internalID string, metadata job.Metadata) (*job.Item, error) {
	return &job.Item{InternalID: internalID, Metadata: metadata.Clone()}, nil
}

func (h *ProofCreation) ProcessJob(ctx context.Context, item *job.Item) (job.ExternalID, error) {
	externalID, err := h.prover.SubmitTask(ctx, []byte(item.InternalID))
	if err != nil {
		return job.ExternalID{}, fmt.Errorf("proof creation: submit task: %w", err)
	}
	return job.NewExternalIDString(externalID), nil
}

func (h *ProofCreation) VerifyJob(ctx context.Context, item *job.Item) (registry.VerifyResult, error) {
	status, err := h.prover.GetTaskStatus(ctx, item.ExternalID.String())
	if err != nil {
		return registry.VerifyResult{}, fmt.Errorf("proof creation: get task status: %w", err)
	}
	switch status {
	case prover.Succeeded:
		return registry.VerifyResult{Outcome: registry.Verified}, nil
	case prover.Failed:
		return registry.VerifyResult{Outcome: registry.Rejected, Reason: "prover task failed"}, nil
	default:
		return registry.VerifyResult{Outcome: registry.Pending}, nil
	}
}

func (h *ProofCreation) MaxProcessAttempts() int      { return h.maxProcessAttempts }
func (h *ProofCreation) MaxVerificationAttempts() int { return h.maxVerifyAttempts }
func (h *ProofCreation) VerificationPollingDelaySeconds() int {
	return h.pollingDelaySeconds
}
