package store

import (
	"context"
	"sync"
	"testing"

	"github.com/karnotxyz/madara-orchestrator/internal/job"
	"github.com/karnotxyz/madara-orchestrator/internal/joberrors"
)

func TestMemory_CreateRejectsDuplicateTypeAndInternalID(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	if _, err := s.Create(ctx, &job.Item{JobType: job.TypeSnosRun, InternalID: "1"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := s.Create(ctx, &job.Item{JobType: job.TypeSnosRun, InternalID: "1"})
	if err != joberrors.ErrDuplicate {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestMemory_UpdateDetectsStaleVersion(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	created, err := s.Create(ctx, &job.Item{JobType: job.TypeSnosRun, InternalID: "1", Status: job.StatusCreated})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	locked := job.StatusLockedForProcessing
	if _, err := s.Update(ctx, created, Patch{Status: &locked}); err != nil {
		t.Fatalf("first update: %v", err)
	}
	// created still carries the pre-update version; reusing it must fail.
	_, err = s.Update(ctx, created, Patch{Status: &locked})
	if err != joberrors.ErrStaleVersion {
		t.Fatalf("err = %v, want ErrStaleVersion", err)
	}
}

func TestMemory_UpdateIncrementsVersionExactlyOnce(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	created, err := s.Create(ctx, &job.Item{JobType: job.TypeSnosRun, InternalID: "1", Status: job.StatusCreated})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	locked := job.StatusLockedForProcessing
	updated, err := s.Update(ctx, created, Patch{Status: &locked})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != created.Version+1 {
		t.Fatalf("version = %d, want %d", updated.Version, created.Version+1)
	}
}

func TestMemory_JobsWithoutSuccessor(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	for _, internalID := range []string{"1", "2", "3"} {
		status := job.StatusCompleted
		if internalID == "3" {
			status = job.StatusCreated
		}
		if _, err := s.Create(ctx, &job.Item{JobType: job.TypeSnosRun, InternalID: internalID, Status: status}); err != nil {
			t.Fatalf("create snos %s: %v", internalID, err)
		}
	}
	if _, err := s.Create(ctx, &job.Item{JobType: job.TypeProofCreation, InternalID: "1", Status: job.StatusCreated}); err != nil {
		t.Fatalf("create proof creation: %v", err)
	}

	out, err := s.JobsWithoutSuccessor(ctx, job.TypeSnosRun, job.StatusCompleted, job.TypeProofCreation)
	if err != nil {
		t.Fatalf("JobsWithoutSuccessor: %v", err)
	}
	if len(out) != 1 || out[0].InternalID != "2" {
		t.Fatalf("out = %+v, want exactly internal_id=2", out)
	}
}

func TestMemory_ConcurrentCreateOnlyOneWins(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			_, errs[i] = s.Create(ctx, &job.Item{JobType: job.TypeSnosRun, InternalID: "42"})
		}()
	}
	wg.Wait()

	okCount := 0
	for _, err := range errs {
		if err == nil {
			okCount++
		} else if err != joberrors.ErrDuplicate {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if okCount != 1 {
		t.Fatalf("okCount = %d, want 1", okCount)
	}
}
