package jobs

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
)

func TestEntityAttributes(t *testing.T) {
	job := &rivertype.JobRow{EncodedArgs: []byte(`{"test_case_id":"0192e1a0-0000-7000-8000-000000000002","from_version":2}`)}

	assert.Equal(t, []any{"test_case_id", "0192e1a0-0000-7000-8000-000000000002"}, entityAttributes(job))
	assert.Empty(t, entityAttributes(&rivertype.JobRow{EncodedArgs: []byte(`{}`)}))
}

func TestLoggerMiddleware_storesLoggerInContext(t *testing.T) {
	var buf bytes.Buffer
	m := NewLoggerMiddleware(slog.New(slog.NewTextHandler(&buf, nil)))
	job := &rivertype.JobRow{ID: 7, Kind: "evaluation_run", EncodedArgs: []byte(`{"run_id":"abc"}`)}

	err := m.Work(context.Background(), job, func(ctx context.Context) error {
		return nil
	})

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "evaluation_run job n°7 succeeded")
	assert.Contains(t, buf.String(), "run_id=abc")
}

func TestRecovererMiddleware(t *testing.T) {
	job := &rivertype.JobRow{ID: 3, Kind: "test_case_regeneration"}

	err := NewRecovererMiddleware().Work(context.Background(), job, func(ctx context.Context) error {
		panic("boom")
	})

	assert.ErrorContains(t, err, "panic in test_case_regeneration job n°3: boom")
}

func TestMetricsMiddleware_passesErrorThrough(t *testing.T) {
	jobErr := errors.New("agent unreachable")
	job := &rivertype.JobRow{Kind: "evaluation_run"}

	err := NewMetricsMiddleware().Work(context.Background(), job, func(ctx context.Context) error {
		return jobErr
	})

	assert.ErrorIs(t, err, jobErr)
}
