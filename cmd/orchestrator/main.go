// Command orchestrator runs the rollup proving pipeline: the HTTP health
// surface, the two queue-consumer pools, and the five discovery tickers,
// all in one process, grounded on the teacher's cmd/main.go
// RUN_SERVER/RUN_WORKER wiring (app.New/app.Start), generalized here since
// this orchestrator always needs both halves running together rather than
// as separately toggled deployment modes.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/karnotxyz/madara-orchestrator/internal/clients/blobstore"
	"github.com/karnotxyz/madara-orchestrator/internal/clients/chainrpc"
	"github.com/karnotxyz/madara-orchestrator/internal/clients/da"
	"github.com/karnotxyz/madara-orchestrator/internal/clients/prover"
	"github.com/karnotxyz/madara-orchestrator/internal/clients/settlement"
	"github.com/karnotxyz/madara-orchestrator/internal/config"
	"github.com/karnotxyz/madara-orchestrator/internal/discovery"
	"github.com/karnotxyz/madara-orchestrator/internal/handlers"
	"github.com/karnotxyz/madara-orchestrator/internal/httpapi"
	"github.com/karnotxyz/madara-orchestrator/internal/job"
	"github.com/karnotxyz/madara-orchestrator/internal/lifecycle"
	"github.com/karnotxyz/madara-orchestrator/internal/logger"
	"github.com/karnotxyz/madara-orchestrator/internal/queue"
	"github.com/karnotxyz/madara-orchestrator/internal/registry"
	"github.com/karnotxyz/madara-orchestrator/internal/store"
	"github.com/karnotxyz/madara-orchestrator/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "orchestrator: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	bootLog, err := logger.New("dev")
	if err != nil {
		return fmt.Errorf("init bootstrap logger: %w", err)
	}
	defer bootLog.Sync()

	cfg, err := config.Load(bootLog)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, "madara-orchestrator")
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	db, err := store.OpenPostgres(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("migrate job store: %w", err)
	}
	jobStore := store.NewPostgres(db, log)

	rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	jobQueue := queue.NewRedis(rdb, log)

	blobs, err := newBlobStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init blob store: %w", err)
	}

	// The DA, prover, settlement and chain-RPC layers are per-deployment
	// external services with no single grounded vendor SDK in the example
	// pack; the in-process fakes stand in as the wiring seam an operator
	// swaps for a real client satisfying the same interface.
	chainRPC := chainrpc.NewFake()
	proverClient := prover.NewFake()
	daClient := da.NewFake(16, 128*1024)
	settlementClient := settlement.NewFake()

	reg := registry.New()
	rp := cfg.DefaultRetryPolicy
	if err := reg.Register(job.TypeSnosRun, handlers.NewSnos(chainRPC, rp.MaxProcessAttempts, rp.MaxVerificationAttempts, rp.VerificationPollingDelaySeconds)); err != nil {
		return err
	}
	if err := reg.Register(job.TypeProofCreation, handlers.NewProofCreation(proverClient, rp.MaxProcessAttempts, rp.MaxVerificationAttempts, rp.VerificationPollingDelaySeconds)); err != nil {
		return err
	}
	if err := reg.Register(job.TypeDataSubmission, handlers.NewDataSubmission(blobs, daClient, rp.MaxProcessAttempts, rp.MaxVerificationAttempts, rp.VerificationPollingDelaySeconds)); err != nil {
		return err
	}
	if err := reg.Register(job.TypeProofRegistration, handlers.NewProofRegistration(settlementClient, rp.MaxProcessAttempts, rp.MaxVerificationAttempts, rp.VerificationPollingDelaySeconds)); err != nil {
		return err
	}
	if err := reg.Register(job.TypeStateTransition, handlers.NewStateTransition(settlementClient, rp.MaxProcessAttempts, rp.MaxVerificationAttempts, rp.VerificationPollingDelaySeconds)); err != nil {
		return err
	}

	engine := lifecycle.NewEngine(jobStore, jobQueue, reg, log)

	processingPool := lifecycle.NewConsumerPool(jobQueue, queue.Processing, cfg.ConsumerPollInterval, cfg.ConsumerConcurrency, engine.ProcessJob, log)
	verificationPool := lifecycle.NewConsumerPool(jobQueue, queue.Verification, cfg.ConsumerPollInterval, cfg.ConsumerConcurrency, engine.VerifyJob, log)

	runners := []*discovery.Runner{
		discovery.NewRunner("SnosWorker", cfg.Discovery.SnosInterval, discovery.NewSnosWorker(jobStore, engine, chainRPC), log),
		discovery.NewRunner("ProvingWorker", cfg.Discovery.ProvingInterval, discovery.NewProvingWorker(jobStore, engine), log),
		discovery.NewRunner("DataSubmissionWorker", cfg.Discovery.DataSubmissionInterval, discovery.NewDataSubmissionWorker(jobStore, engine), log),
		discovery.NewRunner("UpdateStateWorker", cfg.Discovery.UpdateStateInterval, discovery.NewUpdateStateWorker(jobStore, engine), log),
	}
	if !cfg.Discovery.SkipProofRegistration {
		runners = append(runners, discovery.NewRunner("ProofRegistrationWorker", cfg.Discovery.ProofRegistrationInterval, discovery.NewProofRegistrationWorker(jobStore, engine), log))
	}

	router := httpapi.NewRouter(httpapi.Dependencies{Store: jobStore, Queue: jobQueue}, log)
	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.HTTPPort), Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return processingPool.Run(gctx) })
	g.Go(func() error { return verificationPool.Run(gctx) })
	for _, r := range runners {
		r := r
		g.Go(func() error { return r.Run(gctx) })
	}
	g.Go(func() error {
		log.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newBlobStore(ctx context.Context, cfg config.Config, log *logger.Logger) (blobstore.Store, error) {
	opts := blobstore.ClientOptionsFromEnv()
	return blobstore.NewGCS(ctx, cfg.BlobBucketName, log, opts...)
}
