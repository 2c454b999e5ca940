package store

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/karnotxyz/madara-orchestrator/internal/job"
	"github.com/karnotxyz/madara-orchestrator/internal/joberrors"
)

type typeInternalKey struct {
	jobType    job.Type
	internalID string
}

// Memory is an in-process Store used by the lifecycle/discovery unit tests
// and by the two-worker-race scenario in spec.md §8, where exercising the
// real optimistic-update race needs a backend that is cheap to spin up
// concurrently from goroutines.
type Memory struct {
	mu    sync.Mutex
	byID  map[string]*job.Item
	byKey map[typeInternalKey]string
}

func NewMemory() *Memory {
	return &Memory{
		byID:  make(map[string]*job.Item),
		byKey: make(map[typeInternalKey]string),
	}
}

func clone(item *job.Item) *job.Item {
	if item == nil {
		return nil
	}
	cp := *item
	cp.Metadata = item.Metadata.Clone()
	return &cp
}

func (m *Memory) Create(_ context.Context, item *job.Item) (*job.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := typeInternalKey{jobType: item.JobType, internalID: item.InternalID}
	if _, exists := m.byKey[key]; exists {
		return nil, joberrors.ErrDuplicate
	}
	stored := clone(item)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	m.byID[stored.ID] = stored
	m.byKey[key] = stored.ID
	return clone(stored), nil
}

func (m *Memory) GetByID(_ context.Context, id string) (*job.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return clone(item), nil
}

func (m *Memory) GetByInternalIDAndType(_ context.Context, internalID string, jobType job.Type) (*job.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byKey[typeInternalKey{jobType: jobType, internalID: internalID}]
	if !ok {
		return nil, nil
	}
	return clone(m.byID[id]), nil
}

// Update is the only mutation path and is where the optimistic-concurrency
// invariant lives: it compares the caller's current.Version against the
// stored version under the lock and only commits (incrementing version by
// exactly one) if they match.
func (m *Memory) Update(_ context.Context, current *job.Item, patch Patch) (*job.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.byID[current.ID]
	if !ok {
		return nil, joberrors.ErrNotFound
	}
	if stored.Version != current.Version {
		return nil, joberrors.ErrStaleVersion
	}

	next := clone(stored)
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if patch.ExternalID != nil {
		next.ExternalID = *patch.ExternalID
	}
	if patch.Metadata != nil {
		next.Metadata = patch.Metadata.Clone()
	}
	next.Version = stored.Version + 1

	m.byID[current.ID] = next
	return clone(next), nil
}

func (m *Memory) UpdateStatus(ctx context.Context, current *job.Item, newStatus job.Status) (*job.Item, error) {
	return m.Update(ctx, current, Patch{Status: &newStatus})
}

func (m *Memory) UpdateMetadata(ctx context.Context, current *job.Item, metadata job.Metadata) (*job.Item, error) {
	return m.Update(ctx, current, Patch{Metadata: metadata})
}

func (m *Memory) LatestByType(_ context.Context, jobType job.Type) (*job.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *job.Item
	for _, it := range m.byID {
		if it.JobType != jobType {
			continue
		}
		if best == nil || numericLess(best.InternalID, it.InternalID) {
			best = it
		}
	}
	return clone(best), nil
}

func (m *Memory) LatestByTypeAndStatus(_ context.Context, jobType job.Type, status job.Status) (*job.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *job.Item
	for _, it := range m.byID {
		if it.JobType != jobType || it.Status != status {
			continue
		}
		if best == nil || numericLess(best.InternalID, it.InternalID) {
			best = it
		}
	}
	return clone(best), nil
}

func (m *Memory) JobsAfterInternalIDByType(_ context.Context, jobType job.Type, internalID string) ([]*job.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*job.Item
	for _, it := range m.byID {
		if it.JobType != jobType {
			continue
		}
		if numericLess(internalID, it.InternalID) {
			out = append(out, clone(it))
		}
	}
	sort.Slice(out, func(i, j int) bool { return numericLess(out[i].InternalID, out[j].InternalID) })
	return out, nil
}

func (m *Memory) JobsByStatuses(_ context.Context, statuses []job.Status, limit int) ([]*job.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[job.Status]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}
	var out []*job.Item
	for _, it := range m.byID {
		if wanted[it.Status] {
			out = append(out, clone(it))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) JobsWithoutSuccessor(_ context.Context, aType job.Type, aStatus job.Status, bType job.Type) ([]*job.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	successors := make(map[string]bool)
	for key := range m.byKey {
		if key.jobType == bType {
			successors[key.internalID] = true
		}
	}

	var out []*job.Item
	for _, it := range m.byID {
		if it.JobType != aType || it.Status != aStatus {
			continue
		}
		if successors[it.InternalID] {
			continue
		}
		out = append(out, clone(it))
	}
	sort.Slice(out, func(i, j int) bool { return numericLess(out[i].InternalID, out[j].InternalID) })
	return out, nil
}

// numericLess orders internal ids (typically decimal block numbers)
// numerically when possible, falling back to lexicographic comparison so
// non-numeric internal ids remain well-ordered rather than erroring.
func numericLess(a, b string) bool {
	an, aerr := strconv.ParseInt(a, 10, 64)
	bn, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		return an < bn
	}
	return a < b
}
