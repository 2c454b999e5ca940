// Package da is the data-availability client capability from spec.md §6,
// consumed by the DataSubmission handler: publish a state diff, then poll
// for its inclusion.
package da

import "context"

// InclusionStatus is the tri-state result of polling a published diff.
type InclusionStatus int

const (
	Verified InclusionStatus = iota
	Pending
	Rejected
)

// Client publishes rollup state diffs to the data-availability layer.
//
// MaxBlobPerTxn and MaxBytesPerBlob describe the layer's own batching
// limits (spec.md §6); they exist for a future caller that needs to
// chunk a diff before calling PublishStateDiff. The DataSubmission
// handler doesn't consult them today because its diff is always a
// single job's output, already small enough to fit one blob — batching
// multiple jobs' diffs into one publish call is out of spec.md's scope.
type Client interface {
	PublishStateDiff(ctx context.Context, diff []byte) (string, error)
	VerifyInclusion(ctx context.Context, externalID string) (InclusionStatus, error)
	MaxBlobPerTxn() int
	MaxBytesPerBlob() int
}
