// Package handlers provides the concrete registry.Handler implementations
// for each job type, wiring the external client capabilities from
// spec.md §6 into the create/process/verify contract from spec.md §4.3.
package handlers

import (
	"context"
	"fmt"

	"github.com/karnotxyz/madara-orchestrator/internal/clients/chainrpc"
	"github.com/karnotxyz/madara-orchestrator/internal/job"
	"github.com/karnotxyz/madara-orchestrator/internal/registry"
)

// Snos processes the per-block executor stage: processing queries the
// block's state update upstream (failing only if that call errors) and
// records the block number as its own external id; verification completes
// once the state update reports StateUpdated.
type Snos struct {
	rpc                 chainrpc.Client
	maxProcessAttempts  int
	maxVerifyAttempts   int
	pollingDelaySeconds int
}

func NewSnos(rpc chainrpc.Client, maxProcessAttempts, maxVerifyAttempts, pollingDelaySeconds int) *Snos {
	return &Snos{
		rpc:                 rpc,
		maxProcessAttempts:  maxProcessAttempts,
		maxVerifyAttempts:   maxVerifyAttempts,
		pollingDelaySeconds: pollingDelaySeconds,
	}
}

func (s *Snos) CreateJob(internalID string, metadata job.Metadata) (*job.Item, error) {
	return &job.Item{InternalID: internalID, Metadata: metadata.Clone()}, nil
}

func (s *Snos) ProcessJob(ctx context.Context, item *job.Item) (job.ExternalID, error) {
	block, err := parseBlock(item.InternalID)
	if err != nil {
		return job.ExternalID{}, err
	}
	if _, err := s.rpc.GetStateUpdate(ctx, block); err != nil {
		return job.ExternalID{}, fmt.Errorf("snos: get state update for block %d: %w", block, err)
	}
	return job.NewExternalIDInt(int64(block)), nil
}

func (s *Snos) VerifyJob(ctx context.Context, item *job.Item) (registry.VerifyResult, error) {
	block, err := parseBlock(item.InternalID)
	if err != nil {
		return registry.VerifyResult{}, err
	}
	status, err := s.rpc.GetStateUpdate(ctx, block)
	if err != nil {
		return registry.VerifyResult{}, fmt.Errorf("snos: get state update for block %d: %w", block, err)
	}
	if status == chainrpc.StateUpdated {
		return registry.VerifyResult{Outcome: registry.Verified}, nil
	}
	return registry.VerifyResult{Outcome: registry.Pending}, nil
}

func (s *Snos) MaxProcessAttempts() int      { return s.maxProcessAttempts }
func (s *Snos) MaxVerificationAttempts() int { return s.maxVerifyAttempts }
func (s *Snos) VerificationPollingDelaySeconds() int {
	return s.pollingDelaySeconds
}

func parseBlock(internalID string) (uint64, error) {
	n, err := parseUint(internalID)
	if err != nil {
		return 0, fmt.Errorf("parse internal id %q as block number: %w", internalID, err)
	}
	return n, nil
}
