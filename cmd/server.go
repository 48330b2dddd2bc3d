package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/getsentry/sentry-go"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/checkmarble/agent-eval-backend/api"
	"github.com/checkmarble/agent-eval-backend/infra"
	"github.com/checkmarble/agent-eval-backend/repositories"
	"github.com/checkmarble/agent-eval-backend/usecases"
	"github.com/checkmarble/agent-eval-backend/utils"
)

func RunServer() error {
	// This is where we read the environment variables and set up the configuration for the application.
	apiConfig := api.Configuration{
		Env:                 utils.GetEnv("ENV", "development"),
		AppName:             appName,
		AppVersion:          apiVersion,
		Port:                utils.GetRequiredEnv[string]("PORT"),
		RequestLoggingLevel: utils.GetEnv("REQUEST_LOGGING_LEVEL", "all"),
		CorsAllowedOrigins:  splitList(utils.GetEnv("CORS_ALLOWED_ORIGINS", "")),
		DefaultTimeout:      utils.GetEnv("DEFAULT_TIMEOUT", 5*time.Second),
		GenerationTimeout:   utils.GetEnv("GENERATION_TIMEOUT", 2*time.Minute),
		MaxUploadSize:       int64(utils.GetEnv("MAX_UPLOAD_SIZE_MB", 10)) << 20,
		EnablePrometheus:    utils.GetEnv("ENABLE_PROMETHEUS", false),
	}
	commonConfig := commonConfigFromEnv()
	pgConfig := pgConfigFromEnv()
	generationConfig := generationConfigFromEnv()

	logger := utils.NewLogger(commonConfig.loggingFormat, commonConfig.loggingLevel)
	ctx := utils.StoreLoggerInContext(context.Background(), logger)

	evaluationConfig, err := evaluationConfigFromEnv()
	if err != nil {
		utils.LogAndReportSentryError(ctx, err)
		return err
	}

	infra.SetupSentry(commonConfig.sentryDsn, apiConfig.Env, apiVersion)
	defer sentry.Flush(3 * time.Second)

	telemetryRessources, err := initTelemetry(ctx, commonConfig)
	if err != nil {
		utils.LogAndReportSentryError(ctx, err)
	}

	pool, err := infra.NewPostgresConnectionPool(ctx, pgConfig.GetConnectionString(), pgConfig.MaxPoolConnections)
	if err != nil {
		utils.LogAndReportSentryError(ctx, err)
		return err
	}
	defer pool.Close()

	// The server only inserts jobs, the worker process runs them.
	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{})
	if err != nil {
		utils.LogAndReportSentryError(ctx, err)
		return err
	}

	generationAdapter, err := newGenerationAdapter(ctx, generationConfig)
	if err != nil {
		utils.LogAndReportSentryError(ctx, err)
		return err
	}

	repos := repositories.NewRepositories(
		pool,
		repositories.WithRiverClient(riverClient),
		repositories.WithDocumentsBucketUrl(commonConfig.documentsBucketUrl),
	)
	defer repos.DocumentStore.Close()

	ucOptions := []usecases.Option{usecases.WithEvaluationConfig(evaluationConfig)}
	if generationAdapter != nil {
		ucOptions = append(ucOptions, usecases.WithGenerationAdapter(*generationAdapter))
	}
	uc := usecases.NewUsecases(repos, ucOptions...)

	apiConfig.ProfilingHandler = setupProfiling(ctx, commonConfig, appName)
	router := api.InitRouterMiddlewares(ctx, apiConfig, telemetryRessources)
	server := api.NewServer(router, apiConfig, uc)

	notify, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.InfoContext(ctx, "starting server", slog.String("port", apiConfig.Port),
			slog.String("version", apiVersion))
		err := server.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			utils.LogAndReportSentryError(ctx, errors.Wrap(err, "Error while serving the app"))
		}
		logger.InfoContext(ctx, "server returned")
	}()

	<-notify.Done()
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		utils.LogAndReportSentryError(
			ctx,
			errors.Wrap(err, "Error while shutting down the server"),
		)
		return err
	}

	return nil
}
