package infra

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	DEFAULT_MAX_CONNECTIONS = 20
	APPLICATION_NAME        = "agent-eval-backend"
)

// NewPostgresConnectionPool opens a traced pool. Evaluation runs hold connections only while
// recording outcomes, so the pool stays small compared to the execution concurrency.
func NewPostgresConnectionPool(ctx context.Context, connectionString string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, errors.Wrap(err, "invalid postgres connection string")
	}

	cfg.ConnConfig.Tracer = otelpgx.NewTracer()
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = APPLICATION_NAME
	}
	cfg.MaxConns = DEFAULT_MAX_CONNECTIONS
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create connection pool")
	}
	return pool, nil
}
