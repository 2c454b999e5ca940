// Package store defines the Job Store contract (spec.md §4.1): a persistent
// mapping of job id -> job record with optimistic updates and the indexed
// queries the discovery workers depend on.
package store

import (
	"context"

	"github.com/karnotxyz/madara-orchestrator/internal/job"
)

// Patch describes a conditional update to a job record. Only non-nil fields
// are applied; Version is always checked against the stored record's
// current version (optimistic concurrency per spec.md §3/§4.1).
type Patch struct {
	Status     *job.Status
	ExternalID *job.ExternalID
	Metadata   job.Metadata
}

// Store is the persistent mapping of job id -> job record. All operations
// are asynchronous in the sense that implementations may hit a network-
// backed database; callers always pass a context.Context.
//
// Update is the sole mutation path: it applies a Patch only if the stored
// record's version equals the version on the current snapshot the caller
// holds, atomically incrementing version on success. A version mismatch
// returns joberrors.ErrStaleVersion, never a silent no-op.
type Store interface {
	Create(ctx context.Context, item *job.Item) (*job.Item, error)
	GetByID(ctx context.Context, id string) (*job.Item, error)
	GetByInternalIDAndType(ctx context.Context, internalID string, jobType job.Type) (*job.Item, error)

	Update(ctx context.Context, current *job.Item, patch Patch) (*job.Item, error)
	UpdateStatus(ctx context.Context, current *job.Item, newStatus job.Status) (*job.Item, error)
	UpdateMetadata(ctx context.Context, current *job.Item, metadata job.Metadata) (*job.Item, error)

	LatestByType(ctx context.Context, jobType job.Type) (*job.Item, error)
	LatestByTypeAndStatus(ctx context.Context, jobType job.Type, status job.Status) (*job.Item, error)
	JobsAfterInternalIDByType(ctx context.Context, jobType job.Type, internalID string) ([]*job.Item, error)
	JobsByStatuses(ctx context.Context, statuses []job.Status, limit int) ([]*job.Item, error)

	// JobsWithoutSuccessor returns every record of type aType in status
	// aStatus that has no record of type bType sharing its internal_id.
	// This is the primary discovery query (spec.md §4.1).
	JobsWithoutSuccessor(ctx context.Context, aType job.Type, aStatus job.Status, bType job.Type) ([]*job.Item, error)
}
