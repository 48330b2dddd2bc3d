package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/checkmarble/agent-eval-backend/api/middleware"
	"github.com/checkmarble/agent-eval-backend/infra"
	"github.com/checkmarble/agent-eval-backend/pure_utils"
	"github.com/checkmarble/agent-eval-backend/utils"
)

// normalizeOrigin reduces a configured url to the scheme://host form browsers send in the Origin header.
func normalizeOrigin(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("origin %q has no http or https scheme", raw)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("origin %q has no host", raw)
	}
	return (&url.URL{Scheme: parsed.Scheme, Host: parsed.Host}).String(), nil
}

func corsOption(ctx context.Context, conf Configuration) cors.Config {
	logger := utils.LoggerFromContext(ctx)
	allowedOrigins := []string{}
	for _, s := range conf.CorsAllowedOrigins {
		origin, err := normalizeOrigin(s)
		if err != nil {
			logger.ErrorContext(ctx, "ignoring invalid CORS allowed origin, browser requests from it will be rejected",
				"url", s, "error", err.Error())
			continue
		}
		allowedOrigins = append(allowedOrigins, origin)
	}
	allowedOrigins = pure_utils.Deduplicate(allowedOrigins)

	if conf.Env == "development" {
		allowedOrigins = append(allowedOrigins,
			"http://localhost:3000", "http://localhost:5173")
	}

	return cors.Config{
		// no credentials are sent, any origin can read the API when none is configured
		AllowAllOrigins: len(allowedOrigins) == 0,
		AllowOrigins:    allowedOrigins,
		AllowMethods: []string{
			http.MethodOptions, http.MethodHead, http.MethodGet,
			http.MethodPost, http.MethodDelete,
		},
		AllowHeaders:     []string{"Content-Type", utils.ActorHeader, "baggage", "sentry-trace"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
}

func InitRouterMiddlewares(
	ctx context.Context,
	conf Configuration,
	telemetryRessources infra.TelemetryRessources,
) *gin.Engine {
	if conf.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := utils.LoggerFromContext(ctx)

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	r.Use(cors.New(corsOption(ctx, conf)))
	r.Use(utils.StoreActorInContextMiddleware())
	r.Use(middleware.NewLogging(logger,
		middleware.WithIgnorePath("/liveness", "/metrics"),
		middleware.WithRequestLoggingLevel(conf.RequestLoggingLevel),
	))
	r.Use(utils.StoreLoggerInContextMiddleware(logger))
	r.Use(otelgin.Middleware(
		conf.AppName,
		otelgin.WithTracerProvider(telemetryRessources.TracerProvider),
		otelgin.WithPropagators(telemetryRessources.TextMapPropagator),
	))
	r.Use(utils.StoreOpenTelemetryTracerInContextMiddleware(telemetryRessources.Tracer))

	return r
}
