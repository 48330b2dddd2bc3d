package repositories

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Liveness checks that the database answers and that the schema has been migrated.
func (repo *EvalDbRepository) Liveness(ctx context.Context, exec Executor) error {
	var migrated bool
	err := exec.QueryRow(ctx, "SELECT to_regclass('test_cases') IS NOT NULL").Scan(&migrated)
	if err != nil {
		return errors.Wrap(err, "database is not reachable")
	}
	if !migrated {
		return errors.New("database schema is not migrated")
	}
	return nil
}
