package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/karnotxyz/madara-orchestrator/internal/clients/blobstore"
	"github.com/karnotxyz/madara-orchestrator/internal/clients/da"
	"github.com/karnotxyz/madara-orchestrator/internal/clients/prover"
	"github.com/karnotxyz/madara-orchestrator/internal/clients/settlement"
	"github.com/karnotxyz/madara-orchestrator/internal/job"
	"github.com/karnotxyz/madara-orchestrator/internal/lifecycle"
	"github.com/karnotxyz/madara-orchestrator/internal/logger"
	"github.com/karnotxyz/madara-orchestrator/internal/queue"
	"github.com/karnotxyz/madara-orchestrator/internal/registry"
	"github.com/karnotxyz/madara-orchestrator/internal/store"
)

func TestProofCreation_FullRoundTripThroughEngine(t *testing.T) {
	s := store.NewMemory()
	q := queue.NewMemory()
	r := registry.New()
	p := prover.NewFake()
	h := NewProofCreation(p, 3, 3, 1)
	require.NoError(t, r.Register(job.TypeProofCreation, h))

	log, err := logger.New("test")
	require.NoError(t, err)
	e := lifecycle.NewEngine(s, q, r, log)

	ctx := context.Background()
	created, err := e.CreateJob(ctx, job.TypeProofCreation, "10", job.Metadata{})
	require.NoError(t, err)

	require.NoError(t, e.ProcessJob(ctx, created.ID))
	afterProcess, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusPendingVerification, afterProcess.Status)

	p.Resolve(afterProcess.ExternalID.String(), prover.Succeeded)
	require.NoError(t, e.VerifyJob(ctx, created.ID))

	final, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusCompleted, final.Status)
}

func TestDataSubmission_RejectedFlowsBackToProcessing(t *testing.T) {
	s := store.NewMemory()
	q := queue.NewMemory()
	r := registry.New()
	daFake := da.NewFake(1, 1<<20)
	blobs := blobstore.NewMemory()
	h := NewDataSubmission(blobs, daFake, 2, 2, 1)
	require.NoError(t, r.Register(job.TypeDataSubmission, h))

	log, err := logger.New("test")
	require.NoError(t, err)
	e := lifecycle.NewEngine(s, q, r, log)

	ctx := context.Background()
	created, err := e.CreateJob(ctx, job.TypeDataSubmission, "1", job.Metadata{})
	require.NoError(t, err)
	// Take the processing message CreateJob enqueued, as a consumer would,
	// so the queue below only holds what the rejection re-enqueues.
	createdMsg, err := q.Consume(ctx, queue.Processing)
	require.NoError(t, err)
	require.NoError(t, q.Ack(ctx, queue.Processing, createdMsg.Handle))
	require.NoError(t, e.ProcessJob(ctx, created.ID))

	afterProcess, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	daFake.Resolve(afterProcess.ExternalID.String(), da.Rejected)

	require.NoError(t, e.VerifyJob(ctx, created.ID))
	final, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusVerificationFailed, final.Status)
	require.Equal(t, 1, q.ReadyLen(queue.Processing))
}

func TestStateTransition_ProcessWithKZGMetadataStoresTxHash(t *testing.T) {
	s := store.NewMemory()
	q := queue.NewMemory()
	r := registry.New()
	settleFake := settlement.NewFake()
	h := NewStateTransition(settleFake, 1, 1, 1)
	require.NoError(t, r.Register(job.TypeStateTransition, h))

	log, err := logger.New("test")
	require.NoError(t, err)
	e := lifecycle.NewEngine(s, q, r, log)

	ctx := context.Background()
	created, err := e.CreateJob(ctx, job.TypeStateTransition, "1", job.Metadata{metaUpdateKind: "kzg"})
	require.NoError(t, err)
	require.NoError(t, e.ProcessJob(ctx, created.ID))

	afterProcess, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotEmpty(t, afterProcess.ExternalID.String())
}
