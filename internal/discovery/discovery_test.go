package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/karnotxyz/madara-orchestrator/internal/clients/chainrpc"
	"github.com/karnotxyz/madara-orchestrator/internal/job"
	"github.com/karnotxyz/madara-orchestrator/internal/lifecycle"
	"github.com/karnotxyz/madara-orchestrator/internal/logger"
	"github.com/karnotxyz/madara-orchestrator/internal/queue"
	"github.com/karnotxyz/madara-orchestrator/internal/registry"
	"github.com/karnotxyz/madara-orchestrator/internal/store"
)

type noopHandler struct{}

func (noopHandler) CreateJob(internalID string, metadata job.Metadata) (*job.Item, error) {
	return &job.Item{InternalID: internalID, Metadata: metadata.Clone()}, nil
}
func (noopHandler) ProcessJob(ctx context.Context, item *job.Item) (job.ExternalID, error) {
	return job.ExternalID{}, nil
}
func (noopHandler) VerifyJob(ctx context.Context, item *job.Item) (registry.VerifyResult, error) {
	return registry.VerifyResult{Outcome: registry.Verified}, nil
}
func (noopHandler) MaxProcessAttempts() int              { return 1 }
func (noopHandler) MaxVerificationAttempts() int          { return 1 }
func (noopHandler) VerificationPollingDelaySeconds() int { return 1 }

func newTestEngine(t *testing.T, jobTypes ...job.Type) (*lifecycle.Engine, *store.Memory) {
	t.Helper()
	s := store.NewMemory()
	q := queue.NewMemory()
	r := registry.New()
	for _, jt := range jobTypes {
		require.NoError(t, r.Register(jt, noopHandler{}))
	}
	log, err := logger.New("test")
	require.NoError(t, err)
	return lifecycle.NewEngine(s, q, r, log), s
}

func TestSnosWorker_CreatesJobsUpToTip(t *testing.T) {
	e, s := newTestEngine(t, job.TypeSnosRun)
	rpc := chainrpc.NewFake()
	rpc.SetBlockNumber(2)

	tick := NewSnosWorker(s, e, rpc)
	summary, err := tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, summary.JobsCreated) // blocks 0, 1, 2

	jobs, err := s.JobsByStatuses(context.Background(), []job.Status{job.StatusCreated}, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
}

func TestSnosWorker_SkipsWhenGateClosed(t *testing.T) {
	e, s := newTestEngine(t, job.TypeSnosRun)
	rpc := chainrpc.NewFake()
	rpc.SetBlockNumber(5)

	_, err := s.Create(context.Background(), &job.Item{
		JobType: job.TypeSnosRun, InternalID: "9", Status: job.StatusVerificationFailed,
	})
	require.NoError(t, err)

	tick := NewSnosWorker(s, e, rpc)
	summary, err := tick(context.Background())
	require.NoError(t, err)
	require.True(t, summary.SkippedGate)
	require.Zero(t, summary.JobsCreated)
}

func TestSnosWorker_SecondTickOnlyCreatesNewBlocks(t *testing.T) {
	e, s := newTestEngine(t, job.TypeSnosRun)
	rpc := chainrpc.NewFake()
	rpc.SetBlockNumber(1)

	tick := NewSnosWorker(s, e, rpc)
	_, err := tick(context.Background())
	require.NoError(t, err)

	rpc.SetBlockNumber(3)
	summary, err := tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, summary.JobsCreated) // blocks 2, 3
}

func TestProvingWorker_CreatesProofCreationForCompletedSnos(t *testing.T) {
	e, s := newTestEngine(t, job.TypeProofCreation)
	_, err := s.Create(context.Background(), &job.Item{
		JobType: job.TypeSnosRun, InternalID: "10", Status: job.StatusCompleted, Metadata: job.Metadata{"k": "v"},
	})
	require.NoError(t, err)

	tick := NewProvingWorker(s, e)
	summary, err := tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.JobsCreated)

	created, err := s.GetByInternalIDAndType(context.Background(), "10", job.TypeProofCreation)
	require.NoError(t, err)
	require.NotNil(t, created)
	require.Equal(t, "v", created.Metadata["k"])
}

func TestProvingWorker_IgnoresAlreadyHasSuccessor(t *testing.T) {
	e, s := newTestEngine(t, job.TypeProofCreation)
	_, err := s.Create(context.Background(), &job.Item{
		JobType: job.TypeSnosRun, InternalID: "10", Status: job.StatusCompleted,
	})
	require.NoError(t, err)
	_, err = s.Create(context.Background(), &job.Item{
		JobType: job.TypeProofCreation, InternalID: "10", Status: job.StatusCreated,
	})
	require.NoError(t, err)

	tick := NewProvingWorker(s, e)
	summary, err := tick(context.Background())
	require.NoError(t, err)
	require.Zero(t, summary.JobsCreated)
}

func TestUpdateStateWorker_YieldsWithoutBootstrap(t *testing.T) {
	e, s := newTestEngine(t, job.TypeStateTransition)

	tick := NewUpdateStateWorker(s, e)
	summary, err := tick(context.Background())
	require.NoError(t, err)
	require.Zero(t, summary.JobsCreated)
}

func TestUpdateStateWorker_CreatesForEveryCompletedProofCreationAfterLatestTransition(t *testing.T) {
	e, s := newTestEngine(t, job.TypeStateTransition)

	_, err := s.Create(context.Background(), &job.Item{
		JobType: job.TypeStateTransition, InternalID: "5", Status: job.StatusCompleted,
	})
	require.NoError(t, err)
	_, err = s.Create(context.Background(), &job.Item{
		JobType: job.TypeProofCreation, InternalID: "6", Status: job.StatusCompleted,
	})
	require.NoError(t, err)
	_, err = s.Create(context.Background(), &job.Item{
		JobType: job.TypeProofCreation, InternalID: "7", Status: job.StatusCompleted,
	})
	require.NoError(t, err)

	tick := NewUpdateStateWorker(s, e)
	summary, err := tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, summary.JobsCreated)

	// A second tick must not refire for internal ids that already have a
	// StateTransition successor, unconditionally of any external signal.
	summary, err = tick(context.Background())
	require.NoError(t, err)
	require.Zero(t, summary.JobsCreated)
}

func TestUpdateStateWorker_CreatesForNewlyCompletedProofCreation(t *testing.T) {
	e, s := newTestEngine(t, job.TypeStateTransition)

	_, err := s.Create(context.Background(), &job.Item{
		JobType: job.TypeStateTransition, InternalID: "5", Status: job.StatusCompleted,
	})
	require.NoError(t, err)
	_, err = s.Create(context.Background(), &job.Item{
		JobType: job.TypeProofCreation, InternalID: "6", Status: job.StatusCompleted,
	})
	require.NoError(t, err)

	tick := NewUpdateStateWorker(s, e)
	_, err = tick(context.Background())
	require.NoError(t, err)

	_, err = s.Create(context.Background(), &job.Item{
		JobType: job.TypeProofCreation, InternalID: "9", Status: job.StatusCompleted,
	})
	require.NoError(t, err)

	summary, err := tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.JobsCreated)
}

func TestGateOpen_ClosedByVerificationFailedJob(t *testing.T) {
	s := store.NewMemory()
	_, err := s.Create(context.Background(), &job.Item{
		JobType: job.TypeSnosRun, InternalID: "1", Status: job.StatusVerificationFailed,
	})
	require.NoError(t, err)

	open, err := gateOpen(context.Background(), s)
	require.NoError(t, err)
	require.False(t, open)
}
