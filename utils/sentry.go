package utils

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/getsentry/sentry-go"

	"github.com/checkmarble/agent-eval-backend/models"
)

// clientErrors are caused by the caller, they are logged but never reported.
var clientErrors = []error{
	models.NotFoundError,
	models.BadParameterError,
	models.ConflictError,
	models.UnsupportedMediaTypeError,
	models.UnprocessableEntityError,
}

func LogAndReportSentryError(ctx context.Context, err error) {
	logger := LoggerFromContext(ctx)

	// cancelled work is reported by whoever cancelled it
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		logger.DebugContext(ctx, fmt.Sprintf("Deadline exceeded or context canceled: %v", err))
		return
	}
	if errors.IsAny(err, clientErrors...) {
		logger.WarnContext(ctx, err.Error())
		return
	}

	logger.ErrorContext(ctx, fmt.Sprintf("%+v", err))

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("actor", ActorFromContext(ctx))
		hub.CaptureException(err)
	})
}
