package utils

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/checkmarble/agent-eval-backend/models"
)

func TestLogAndReportSentryError_levels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := StoreLoggerInContext(context.Background(), logger)

	LogAndReportSentryError(ctx, errors.Wrap(models.ErrTestCaseNotFound, "test case 42"))
	assert.Contains(t, buf.String(), "level=WARN")
	buf.Reset()

	LogAndReportSentryError(ctx, errors.Wrap(context.Canceled, "job stopped"))
	assert.Contains(t, buf.String(), "level=DEBUG")
	buf.Reset()

	LogAndReportSentryError(ctx, errors.New("database is gone"))
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "database is gone")
}
