package cmd

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/checkmarble/agent-eval-backend/infra"
	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/usecases"
	"github.com/checkmarble/agent-eval-backend/usecases/generation"
	"github.com/checkmarble/agent-eval-backend/utils"
)

const appName = "agent-eval-backend"

// Set at build time with -ldflags "-X github.com/checkmarble/agent-eval-backend/cmd.apiVersion=..."
var apiVersion = "dev"

type CommonConfig struct {
	env                  string
	loggingFormat        string
	loggingLevel         string
	sentryDsn            string
	documentsBucketUrl   string
	samplingRatesFile    string
	enableTracing        bool
	telemetryExporter    string
	googleCloudProjectId string
	profilingMode        string
	profilingToken       string
}

func commonConfigFromEnv() CommonConfig {
	return CommonConfig{
		env:                  utils.GetEnv("ENV", "development"),
		loggingFormat:        utils.GetEnv("LOGGING_FORMAT", "text"),
		loggingLevel:         utils.GetEnv("LOGGING_LEVEL", ""),
		sentryDsn:            utils.GetEnv("SENTRY_DSN", ""),
		documentsBucketUrl:   utils.GetEnv("DOCUMENTS_BUCKET_URL", ""),
		samplingRatesFile:    utils.GetEnv("TRACING_SAMPLING_RATES_FILE", ""),
		enableTracing:        utils.GetEnv("ENABLE_TRACING", false),
		telemetryExporter:    utils.GetEnv("TRACING_EXPORTER", "otlp"),
		googleCloudProjectId: utils.GetEnv("GOOGLE_CLOUD_PROJECT", ""),
		profilingMode:        utils.GetEnv("DEBUG_PROFILING_MODE", ""),
		profilingToken:       utils.GetEnv("DEBUG_PROFILING_TOKEN", ""),
	}
}

func pgConfigFromEnv() infra.PgConfig {
	return infra.PgConfig{
		ConnectionString:    utils.GetEnv("PG_CONNECTION_STRING", ""),
		Database:            utils.GetEnv("PG_DATABASE", "agent_eval"),
		DbConnectWithSocket: utils.GetEnv("PG_CONNECT_WITH_SOCKET", false),
		Hostname:            utils.GetEnv("PG_HOSTNAME", ""),
		Password:            utils.GetEnv("PG_PASSWORD", ""),
		Port:                utils.GetEnv("PG_PORT", "5432"),
		User:                utils.GetEnv("PG_USER", ""),
		MaxPoolConnections:  utils.GetEnv("PG_MAX_POOL_SIZE", infra.DEFAULT_MAX_CONNECTIONS),
		SslMode:             utils.GetEnv("PG_SSL_MODE", "prefer"),
	}
}

func agentConfigFromEnv() infra.AgentConfig {
	return infra.AgentConfig{
		EndpointUrl:    utils.GetEnv("AGENT_ENDPOINT_URL", ""),
		RequestTimeout: utils.GetEnv("AGENT_REQUEST_TIMEOUT", 30*time.Second),
		RateLimit:      utils.GetEnv("AGENT_RATE_LIMIT", 0.0),
		MaxRetries:     utils.GetEnv("AGENT_MAX_RETRIES", 3),
		AuthMode:       infra.AgentAuthMode(utils.GetEnv("AGENT_AUTH_MODE", string(infra.AgentAuthNone))),
		AuthAudience:   utils.GetEnv("AGENT_AUTH_AUDIENCE", ""),
	}
}

func generationConfigFromEnv() infra.GenerationConfig {
	return infra.GenerationConfig{
		Backend:    utils.GetEnv("GENERATION_BACKEND", "gemini"),
		ApiKey:     utils.GetEnv("GEMINI_API_KEY", ""),
		Project:    utils.GetEnv("GOOGLE_CLOUD_PROJECT", ""),
		Location:   utils.GetEnv("GOOGLE_CLOUD_LOCATION", "europe-west1"),
		Model:      utils.GetEnv("GENERATION_MODEL", infra.DEFAULT_GENERATION_MODEL),
		MaxRetries: utils.GetEnv("GENERATION_MAX_RETRIES", 3),
		ConfigFile: utils.GetEnv("GENERATION_CONFIG_FILE", ""),
	}
}

func evaluationConfigFromEnv() (usecases.EvaluationConfig, error) {
	defaults := usecases.DefaultEvaluationConfig()
	mandatoryReview := infra.FeatureFlagScopeOf(infra.FEATURE_MANDATORY_REVIEW)

	cfg := usecases.EvaluationConfig{
		SingleActiveRunPerSuite: utils.GetEnv("SINGLE_ACTIVE_RUN_PER_SUITE", defaults.SingleActiveRunPerSuite),
		ExecutionConcurrency:    utils.GetEnv("EXECUTION_CONCURRENCY", defaults.ExecutionConcurrency),
		CaseTimeout:             utils.GetEnv("CASE_TIMEOUT", defaults.CaseTimeout),
		CancelGracePeriod:       utils.GetEnv("CANCEL_GRACE_PERIOD", defaults.CancelGracePeriod),
		RunTimeout:              utils.GetEnv("RUN_TIMEOUT", defaults.RunTimeout),
		SimilarityThreshold:     utils.GetEnv("SIMILARITY_THRESHOLD", defaults.SimilarityThreshold),
		ReviewPolicy: models.ReviewPolicy{
			MandatoryReview:       mandatoryReview.All,
			MandatoryReviewSuites: mandatoryReview.Suites,
		},
	}
	return cfg, cfg.Validate()
}

// newGenerationAdapter returns nil when no generation backend is configured: the generation
// endpoints then answer with a generation_failed error.
func newGenerationAdapter(ctx context.Context, cfg infra.GenerationConfig) (*generation.Adapter, error) {
	if cfg.Backend != "vertex" && cfg.ApiKey == "" {
		utils.LoggerFromContext(ctx).WarnContext(ctx, "no generation backend configured, test case generation is disabled")
		return nil, nil
	}

	prompts, err := generation.LoadPromptConfig(cfg.ConfigFile)
	if err != nil {
		return nil, err
	}
	client, err := infra.NewGenaiClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	generator := generation.NewGenaiContentGenerator(client, cfg.Model, prompts.Temperature)
	adapter := generation.NewAdapter(generator, prompts, cfg.MaxRetries)
	return &adapter, nil
}

func initTelemetry(ctx context.Context, config CommonConfig) (infra.TelemetryRessources, error) {
	samplingMap, err := infra.ParseTelemetrySamplingMap(config.samplingRatesFile)
	if err != nil {
		return infra.NoopTelemetry(), errors.Wrap(err, "invalid tracing sampling rates")
	}
	projectId := config.googleCloudProjectId
	if config.enableTracing && config.telemetryExporter == "gcp" {
		if projectId, err = infra.ResolveGcpProjectId(ctx, projectId); err != nil {
			return infra.NoopTelemetry(), err
		}
	}

	return infra.InitTelemetry(infra.TelemetryConfiguration{
		Enabled:         config.enableTracing,
		ApplicationName: appName,
		ProjectID:       projectId,
		Exporter:        config.telemetryExporter,
		SamplingMap:     samplingMap,
	}, apiVersion)
}

// setupProfiling starts the cloud profiler in "gcp" mode, and returns the pprof handler to mount in
// "http" mode. A profiler that cannot start does not prevent the process from starting.
func setupProfiling(ctx context.Context, config CommonConfig, service string) http.Handler {
	logger := utils.LoggerFromContext(ctx)

	switch config.profilingMode {
	case "":
		return nil
	case utils.ProfilingModeGcp:
		projectId, err := infra.ResolveGcpProjectId(ctx, config.googleCloudProjectId)
		if err == nil {
			err = utils.StartGcpProfiler(service, apiVersion, projectId)
		}
		if err != nil {
			logger.WarnContext(ctx, "profiling is disabled", "error", err.Error())
		}
		return nil
	case utils.ProfilingModeHttp:
		if config.profilingToken == "" {
			logger.WarnContext(ctx, "DEBUG_PROFILING_TOKEN is empty, the pprof endpoints will refuse every request")
		}
		return utils.PprofHandler(config.profilingToken)
	default:
		logger.WarnContext(ctx, "unknown profiling mode", "mode", config.profilingMode)
		return nil
	}
}

func splitList(raw string) []string {
	var out []string
	for item := range strings.SplitSeq(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
