package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLiveness(t *testing.T) {
	mock := newPgxMock(t)
	mock.ExpectQuery(`SELECT to_regclass\('test_cases'\) IS NOT NULL`).
		WillReturnRows(mock.NewRows([]string{"migrated"}).AddRow(true))

	err := NewEvalDbRepository().Liveness(t.Context(), mock)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLiveness_notMigrated(t *testing.T) {
	mock := newPgxMock(t)
	mock.ExpectQuery(`SELECT to_regclass`).
		WillReturnRows(mock.NewRows([]string{"migrated"}).AddRow(false))

	err := NewEvalDbRepository().Liveness(t.Context(), mock)

	assert.ErrorContains(t, err, "not migrated")
}
