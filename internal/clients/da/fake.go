package da

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Client for handler and lifecycle tests. Each
// published diff is assigned a sequential external id and starts in
// Pending; tests drive Resolve to move a specific external id to its
// final status, matching the black-box scope spec.md §6 assigns this
// client (no concrete DA vendor SDK is wired, per spec.md §1).
type Fake struct {
	mu              sync.Mutex
	nextID          int
	statuses        map[string]InclusionStatus
	maxBlobPerTxn   int
	maxBytesPerBlob int
}

func NewFake(maxBlobPerTxn, maxBytesPerBlob int) *Fake {
	return &Fake{
		statuses:        make(map[string]InclusionStatus),
		maxBlobPerTxn:   maxBlobPerTxn,
		maxBytesPerBlob: maxBytesPerBlob,
	}
}

func (f *Fake) PublishStateDiff(_ context.Context, diff []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("da-%d", f.nextID)
	f.statuses[id] = Pending
	return id, nil
}

func (f *Fake) VerifyInclusion(_ context.Context, externalID string) (InclusionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[externalID]
	if !ok {
		return Rejected, fmt.Errorf("fake da: unknown external id %q", externalID)
	}
	return status, nil
}

func (f *Fake) MaxBlobPerTxn() int   { return f.maxBlobPerTxn }
func (f *Fake) MaxBytesPerBlob() int { return f.maxBytesPerBlob }

// Resolve sets externalID's terminal/next status, for tests to drive the
// Pending -> Verified/Rejected transition.
func (f *Fake) Resolve(externalID string, status InclusionStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[externalID] = status
}
