package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/karnotxyz/madara-orchestrator/internal/job"
)

type stubHandler struct{}

func (stubHandler) CreateJob(internalID string, metadata job.Metadata) (*job.Item, error) {
	return &job.Item{InternalID: internalID}, nil
}
func (stubHandler) ProcessJob(ctx context.Context, item *job.Item) (job.ExternalID, error) {
	return job.ExternalID{}, nil
}
func (stubHandler) VerifyJob(ctx context.Context, item *job.Item) (VerifyResult, error) {
	return VerifyResult{Outcome: Verified}, nil
}
func (stubHandler) MaxProcessAttempts() int              { return 1 }
func (stubHandler) MaxVerificationAttempts() int          { return 1 }
func (stubHandler) VerificationPollingDelaySeconds() int { return 1 }

func TestRegistry_GetUnknownJobType(t *testing.T) {
	r := New()
	_, err := r.Get(job.TypeSnosRun)
	if !errors.Is(err, ErrUnknownJobType) {
		t.Fatalf("err = %v, want ErrUnknownJobType", err)
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := New()
	h := stubHandler{}
	if err := r.Register(job.TypeSnosRun, h); err != nil {
		t.Fatalf("register: %v", err)
	}
	got, err := r.Get(job.TypeSnosRun)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("get returned nil handler")
	}
}

func TestRegistry_RejectsDuplicateRegistration(t *testing.T) {
	r := New()
	h := stubHandler{}
	if err := r.Register(job.TypeSnosRun, h); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(job.TypeSnosRun, h); err == nil {
		t.Fatal("second register: want error, got nil")
	}
}

func TestRegistry_RejectsNilHandler(t *testing.T) {
	r := New()
	if err := r.Register(job.TypeSnosRun, nil); err == nil {
		t.Fatal("register nil handler: want error, got nil")
	}
}
