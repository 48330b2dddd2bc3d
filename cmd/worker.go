package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"

	"github.com/checkmarble/agent-eval-backend/infra"
	"github.com/checkmarble/agent-eval-backend/jobs"
	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/repositories"
	"github.com/checkmarble/agent-eval-backend/usecases"
	"github.com/checkmarble/agent-eval-backend/usecases/worker_jobs"
	"github.com/checkmarble/agent-eval-backend/utils"
)

func RunTaskQueue() error {
	// This is where we read the environment variables and set up the configuration for the application.
	commonConfig := commonConfigFromEnv()
	pgConfig := pgConfigFromEnv()
	agentConfig := agentConfigFromEnv()
	generationConfig := generationConfigFromEnv()
	workerConfig := struct {
		evaluationWorkers int
		generationWorkers int
		probePort         string
		enablePrometheus  bool
		reaperSchedule    string
	}{
		evaluationWorkers: utils.GetEnv("EVALUATION_QUEUE_WORKERS", 2),
		generationWorkers: utils.GetEnv("GENERATION_QUEUE_WORKERS", 4),
		probePort:         utils.GetEnv("CLOUD_RUN_PROBE_PORT", ""),
		enablePrometheus:  utils.GetEnv("ENABLE_PROMETHEUS", false),
		reaperSchedule:    utils.GetEnv("STALE_RUN_REAPER_SCHEDULE", ""),
	}

	logger := utils.NewLogger(commonConfig.loggingFormat, commonConfig.loggingLevel)
	ctx := utils.StoreLoggerInContext(context.Background(), logger)

	evaluationConfig, err := evaluationConfigFromEnv()
	if err != nil {
		utils.LogAndReportSentryError(ctx, err)
		return err
	}
	if err := agentConfig.Validate(); err != nil {
		utils.LogAndReportSentryError(ctx, err)
		return err
	}

	infra.SetupSentry(commonConfig.sentryDsn, commonConfig.env, apiVersion)
	defer sentry.Flush(3 * time.Second)

	telemetryRessources, err := initTelemetry(ctx, commonConfig)
	if err != nil {
		utils.LogAndReportSentryError(ctx, err)
	}
	ctx = utils.StoreOpenTelemetryTracerInContext(ctx, telemetryRessources.Tracer)

	pool, err := infra.NewPostgresConnectionPool(ctx, pgConfig.GetConnectionString(), pgConfig.MaxPoolConnections)
	if err != nil {
		utils.LogAndReportSentryError(ctx, err)
		return err
	}
	defer pool.Close()

	agentHttpClient, err := infra.NewAgentHttpClient(ctx, agentConfig)
	if err != nil {
		utils.LogAndReportSentryError(ctx, err)
		return err
	}

	generationAdapter, err := newGenerationAdapter(ctx, generationConfig)
	if err != nil {
		utils.LogAndReportSentryError(ctx, err)
		return err
	}

	// The workers need the usecases, which need a river client to enqueue regenerations: the
	// client is created first and the workers are registered on the bundle before it starts.
	workers := river.NewWorkers()
	reaperJob, err := worker_jobs.NewStaleRunReaperPeriodicJob(workerConfig.reaperSchedule)
	if err != nil {
		utils.LogAndReportSentryError(ctx, err)
		return err
	}
	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		FetchPollInterval: 200 * time.Millisecond,
		Queues: map[string]river.QueueConfig{
			models.EVALUATION_QUEUE_NAME: {MaxWorkers: workerConfig.evaluationWorkers},
			models.GENERATION_QUEUE_NAME: {MaxWorkers: workerConfig.generationWorkers},
		},
		PeriodicJobs: []*river.PeriodicJob{reaperJob},
		// Must be larger than the time it takes to process a job, the run timeout bounds the longest one.
		RescueStuckJobsAfter: evaluationConfig.RunTimeout + usecases.STALE_RUN_MARGIN,
		WorkerMiddleware: []rivertype.WorkerMiddleware{
			jobs.NewTracingMiddleware(telemetryRessources.Tracer),
			jobs.NewSentryMiddleware(),
			jobs.NewLoggerMiddleware(logger),
			jobs.NewMetricsMiddleware(),
			jobs.NewRecovererMiddleware(),
		},
		Workers: workers,
	})
	if err != nil {
		utils.LogAndReportSentryError(ctx, err)
		return err
	}

	repos := repositories.NewRepositories(
		pool,
		repositories.WithRiverClient(riverClient),
		repositories.WithAgentClient(repositories.NewAgentClient(agentConfig, agentHttpClient)),
		repositories.WithDocumentsBucketUrl(commonConfig.documentsBucketUrl),
	)
	defer repos.DocumentStore.Close()

	ucOptions := []usecases.Option{usecases.WithEvaluationConfig(evaluationConfig)}
	if generationAdapter != nil {
		ucOptions = append(ucOptions, usecases.WithGenerationAdapter(*generationAdapter))
	}
	uc := usecases.NewUsecases(repos, ucOptions...)

	river.AddWorker(workers, worker_jobs.NewEvaluationRunWorker(uc.NewEvaluationRunUsecase(), evaluationConfig.RunTimeout))
	river.AddWorker(workers, worker_jobs.NewTestCaseRegenerationWorker(uc.NewTestCaseUsecase()))
	river.AddWorker(workers, worker_jobs.NewStaleRunReaperWorker(uc.NewEvaluationRunUsecase()))

	if err := riverClient.Start(ctx); err != nil {
		utils.LogAndReportSentryError(ctx, err)
		return err
	}

	profilingHandler := setupProfiling(ctx, commonConfig, appName+"-worker")

	// run a non-blocking basic http server to respond to Cloud Run http probes, to respect the Cloud Run contract
	if workerConfig.probePort != "" {
		go func() {
			mux := http.NewServeMux()
			if profilingHandler != nil {
				mux.Handle("/debug/pprof/", profilingHandler)
			}
			mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("OK"))
			})
			if workerConfig.enablePrometheus {
				mux.Handle("/metrics", promhttp.Handler())
			}
			if err := http.ListenAndServe(":"+workerConfig.probePort, mux); err != nil {
				utils.LogAndReportSentryError(ctx, err)
			}
		}()
	}

	// Teardown sequence
	sigintOrTerm := make(chan os.Signal, 1)
	signal.Notify(sigintOrTerm, syscall.SIGINT, syscall.SIGTERM)

	go cleanStop(ctx, sigintOrTerm, riverClient)

	<-riverClient.Stopped()
	logger.InfoContext(ctx, "River client stopped")

	return nil
}

// cleanStop waits for SIGINT/SIGTERM and tries a soft stop that lets running jobs finish. A second
// signal, or the soft stop timeout, cancels the context of the active jobs. A third signal exits
// without waiting for river.
func cleanStop(ctx context.Context, sigintOrTerm chan os.Signal, riverClient *river.Client[pgx.Tx]) {
	logger := utils.LoggerFromContext(ctx)
	<-sigintOrTerm
	logger.InfoContext(ctx, "Received SIGINT/SIGTERM; initiating soft stop (try to wait for jobs to finish)")

	softStopCtx, softStopCtxCancel := context.WithTimeout(ctx, 10*time.Second)
	defer softStopCtxCancel()

	go func() {
		select {
		case <-sigintOrTerm:
			logger.InfoContext(ctx, "Received SIGINT/SIGTERM again; initiating hard stop (cancel everything)")
			softStopCtxCancel()
		case <-softStopCtx.Done():
			logger.InfoContext(ctx, "Soft stop timeout; initiating hard stop (cancel everything)")
		}
	}()

	err := riverClient.Stop(softStopCtx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		logger.ErrorContext(ctx, "Soft stop failed", "error", err)
		panic(err)
	}
	if err == nil {
		logger.InfoContext(ctx, "Soft stop succeeded")
		return
	}

	// Cancelled runs are finalized by the worker within the cancel grace period, or later by the
	// stale run reaper.
	hardStopCtx, hardStopCtxCancel := context.WithTimeout(ctx, 10*time.Second)
	defer hardStopCtxCancel()

	err = riverClient.StopAndCancel(hardStopCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		logger.InfoContext(ctx, "Hard stop timeout; ignoring stop procedure and exiting unsafely")
	} else if err != nil {
		panic(err)
	}
}
