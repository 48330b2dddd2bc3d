package repositories

import (
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func IsUniqueViolationError(err error) bool {
	return pgErrorCode(err) == pgerrcode.UniqueViolation
}

// IsForeignKeyViolationError is returned when the parent row (test case or run) was deleted
// concurrently.
func IsForeignKeyViolationError(err error) bool {
	return pgErrorCode(err) == pgerrcode.ForeignKeyViolation
}
