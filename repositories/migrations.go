package repositories

import (
	"context"
	"database/sql"
	"embed"
	"log/slog"

	"github.com/cockroachdb/errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// embed migrations sql folder
//
//go:embed migrations/*.sql
var embedMigrations embed.FS

const migrationsFolder = "migrations"

func setupDbConnection(ctx context.Context, connectionString string) (*sql.DB, error) {
	migrationDB, err := sql.Open("pgx", connectionString)
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect to database")
	}

	if err := migrationDB.PingContext(ctx); err != nil {
		return nil, errors.Wrap(err, "unable to ping database")
	}

	return migrationDB, nil
}

func RunMigrations(ctx context.Context, connectionString string, logger *slog.Logger) error {
	db, err := setupDbConnection(ctx, connectionString)
	if err != nil {
		return errors.Wrap(err, "setupDbConnection error")
	}
	defer db.Close()

	logger.InfoContext(ctx, "Migrations starting to setup DB: "+migrationsFolder)
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db, migrationsFolder); err != nil {
		return errors.Wrap(err, "unable to run migrations")
	}
	return nil
}
