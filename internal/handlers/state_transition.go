package handlers

import (
	"context"
	"fmt"

	"github.com/karnotxyz/madara-orchestrator/internal/clients/settlement"
	"github.com/karnotxyz/madara-orchestrator/internal/job"
	"github.com/karnotxyz/madara-orchestrator/internal/registry"
)

// StateTransition submits the finalized state update to the L1 settlement
// contract, choosing the classic or KZG-DA update variant based on the
// job's metadata, per spec.md §9's sum-type design note.
type StateTransition struct {
	settlement          settlement.Client
	maxProcessAttempts  int
	maxVerifyAttempts   int
	pollingDelaySeconds int
}

func NewStateTransition(s settlement.Client, maxProcessAttempts, maxVerifyAttempts, pollingDelaySeconds int) *StateTransition {
	return &StateTransition{
		settlement:          s,
		maxProcessAttempts:  maxProcessAttempts,
		maxVerifyAttempts:   maxVerifyAttempts,
		pollingDelaySeconds: pollingDelaySeconds,
	}
}

const metaUpdateKind = "settlement_update_kind"

func (h *StateTransition) CreateJob(internalID string, metadata job.Metadata) (*job.Item, error) {
	return &job.Item{InternalID: internalID, Metadata: metadata.Clone()}, nil
}

func (h *StateTransition) ProcessJob(ctx context.Context, item *job.Item) (job.ExternalID, error) {
	output := settlement.ProgramOutput{Program: []byte(item.InternalID)}
	if item.Metadata[metaUpdateKind] == "kzg" {
		output.Kind = settlement.KindKZG
	} else {
		output.Kind = settlement.KindClassic
	}
	receipt, err := h.settlement.UpdateState(ctx, output)
	if err != nil {
		return job.ExternalID{}, fmt.Errorf("state transition: update state: %w", err)
	}
	return job.NewExternalIDString(receipt.TxHash), nil
}

func (h *StateTransition) VerifyJob(ctx context.Context, item *job.Item) (registry.VerifyResult, error) {
	status, err := h.settlement.TxStatus(ctx, item.ExternalID.String())
	if err != nil {
		return registry.VerifyResult{}, fmt.Errorf("state transition: tx status: %w", err)
	}
	switch status {
	case settlement.Confirmed:
		return registry.VerifyResult{Outcome: registry.Verified}, nil
	case settlement.Reverted:
		return registry.VerifyResult{Outcome: registry.Rejected, Reason: "settlement transaction reverted"}, nil
	default:
		return registry.VerifyResult{Outcome: registry.Pending}, nil
	}
}

func (h *StateTransition) MaxProcessAttempts() int      { return h.maxProcessAttempts }
func (h *StateTransition) MaxVerificationAttempts() int { return h.maxVerifyAttempts }
func (h *StateTransition) VerificationPollingDelaySeconds() int {
	return h.pollingDelaySeconds
}
