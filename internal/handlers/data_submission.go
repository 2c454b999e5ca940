package handlers

import (
	"context"
	"fmt"

	"github.com/karnotxyz/madara-orchestrator/internal/clients/blobstore"
	"github.com/karnotxyz/madara-orchestrator/internal/clients/da"
	"github.com/karnotxyz/madara-orchestrator/internal/job"
	"github.com/karnotxyz/madara-orchestrator/internal/registry"
)

// DataSubmission publishes a job's state diff to the blob store and the
// data-availability layer, then polls for inclusion.
type DataSubmission struct {
	blobs               blobstore.Store
	da                  da.Client
	maxProcessAttempts  int
	maxVerifyAttempts   int
	pollingDelaySeconds int
}

func NewDataSubmission(blobs blobstore.Store, daClient da.Client, maxProcessAttempts, maxVerifyAttempts, pollingDelaySeconds int) *DataSubmission {
	return &DataSubmission{
		blobs:               blobs,
		da:                  daClient,
		maxProcessAttempts:  maxProcessAttempts,
		maxVerifyAttempts:   maxVerifyAttempts,
		pollingDelaySeconds: pollingDelaySeconds,
	}
}

func (h *DataSubmission) CreateJob(internalID string, metadata job.Metadata) (*job.Item, error) {
	return &job.Item{InternalID: internalID, Metadata: metadata.Clone()}, nil
}

func (h *DataSubmission) ProcessJob(ctx context.Context, item *job.Item) (job.ExternalID, error) {
	key := fmt.Sprintf("state-diffs/%s", item.InternalID)
	diff := []byte(item.InternalID)
	if err := h.blobs.Put(ctx, key, diff); err != nil {
		return job.ExternalID{}, fmt.Errorf("data submission: put blob %q: %w", key, err)
	}
	externalID, err := h.da.PublishStateDiff(ctx, diff)
	if err != nil {
		return job.ExternalID{}, fmt.Errorf("data submission: publish state diff: %w", err)
	}
	return job.NewExternalIDString(externalID), nil
}

func (h *DataSubmission) VerifyJob(ctx context.Context, item *job.Item) (registry.VerifyResult, error) {
	status, err := h.da.VerifyInclusion(ctx, item.ExternalID.String())
	if err != nil {
		return registry.VerifyResult{}, fmt.Errorf("data submission: verify inclusion: %w", err)
	}
	switch status {
	case da.Verified:
		return registry.VerifyResult{Outcome: registry.Verified}, nil
	case da.Rejected:
		return registry.VerifyResult{Outcome: registry.Rejected, Reason: "data availability layer rejected the blob"}, nil
	default:
		return registry.VerifyResult{Outcome: registry.Pending}, nil
	}
}

func (h *DataSubmission) MaxProcessAttempts() int      { return h.maxProcessAttempts }
func (h *DataSubmission) MaxVerificationAttempts() int { return h.maxVerifyAttempts }
func (h *DataSubmission) VerificationPollingDelaySeconds() int {
	return h.pollingDelaySeconds
}
