package repositories

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/repositories/dbmodels"
	"github.com/checkmarble/agent-eval-backend/utils"
)

func (repo *EvalDbRepository) CountTestCasesByStatus(ctx context.Context, exec Executor,
	suiteId *uuid.UUID,
) (map[models.TestCaseStatus]int, error) {
	query := NewQueryBuilder().
		Select("status", "COUNT(*) AS count").
		From(dbmodels.TABLE_TEST_CASES).
		Where("deleted_at IS NULL").
		GroupBy("status")
	if suiteId != nil {
		query = query.Where(squirrel.Eq{"suite_id": *suiteId})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "can't build sql query")
	}
	rows, err := exec.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error counting test cases")
	}

	type statusCount struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	counts, err := pgx.CollectRows(rows, pgx.RowToStructByName[statusCount])
	if err != nil {
		return nil, errors.Wrap(err, "error scanning test case counts")
	}

	result := make(map[models.TestCaseStatus]int, len(counts))
	for _, c := range counts {
		result[models.TestCaseStatus(c.Status)] = c.Count
	}
	return result, nil
}

func (repo *EvalDbRepository) CountEvaluationRuns(ctx context.Context, exec Executor, suiteId *uuid.UUID) (int, error) {
	query := NewQueryBuilder().
		Select("COUNT(*)").
		From(dbmodels.TABLE_EVALUATION_RUNS)
	if suiteId != nil {
		query = query.Where(squirrel.Eq{"suite_id": *suiteId})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "can't build sql query")
	}
	var count int
	if err := exec.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "error counting evaluation runs")
	}
	return count, nil
}

// ListCompletedRunPoints returns the completed runs that executed at least one case, oldest first.
func (repo *EvalDbRepository) ListCompletedRunPoints(ctx context.Context, exec Executor,
	suiteId *uuid.UUID,
) ([]models.CompletedRunPoint, error) {
	query := NewQueryBuilder().
		Select(utils.ColumnList[dbmodels.DBCompletedRunPoint]()...).
		From(dbmodels.TABLE_EVALUATION_RUNS).
		Where(squirrel.Eq{"state": models.EvaluationRunCompleted}).
		Where(squirrel.Gt{"total_count": 0}).
		Where("completed_at IS NOT NULL").
		OrderBy("completed_at")
	if suiteId != nil {
		query = query.Where(squirrel.Eq{"suite_id": *suiteId})
	}

	return SqlToListOfModels(ctx, exec, query, dbmodels.AdaptCompletedRunPoint)
}

// SumRunCounts adds up the passed and failed counts of every run, partial counts of failed runs
// included.
func (repo *EvalDbRepository) SumRunCounts(ctx context.Context, exec Executor, suiteId *uuid.UUID) (models.RunTotals, error) {
	query := NewQueryBuilder().
		Select("COALESCE(SUM(passed_count), 0)", "COALESCE(SUM(failed_count), 0)").
		From(dbmodels.TABLE_EVALUATION_RUNS)
	if suiteId != nil {
		query = query.Where(squirrel.Eq{"suite_id": *suiteId})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return models.RunTotals{}, errors.Wrap(err, "can't build sql query")
	}
	var totals models.RunTotals
	if err := exec.QueryRow(ctx, sql, args...).Scan(&totals.Passed, &totals.Failed); err != nil {
		return models.RunTotals{}, errors.Wrap(err, "error summing run counts")
	}
	return totals, nil
}
