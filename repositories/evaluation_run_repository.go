package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/repositories/dbmodels"
)

func selectEvaluationRuns() squirrel.SelectBuilder {
	return NewQueryBuilder().
		Select(dbmodels.SelectEvaluationRunColumns...).
		From(dbmodels.TABLE_EVALUATION_RUNS)
}

func (repo *EvalDbRepository) GetEvaluationRunById(ctx context.Context, exec Executor, id uuid.UUID) (models.EvaluationRun, error) {
	run, err := SqlToOptionalModel(ctx, exec,
		selectEvaluationRuns().Where(squirrel.Eq{"id": id}),
		dbmodels.AdaptEvaluationRun,
	)
	if err != nil {
		return models.EvaluationRun{}, err
	}
	if run == nil {
		return models.EvaluationRun{}, errors.Wrapf(models.ErrEvaluationRunNotFound, "evaluation run %s", id)
	}
	return *run, nil
}

func (repo *EvalDbRepository) ListEvaluationRuns(ctx context.Context, exec Executor, filters models.EvaluationRunFilters) ([]models.EvaluationRun, error) {
	query := selectEvaluationRuns().OrderBy("created_at DESC", "id DESC")

	if filters.SuiteId != nil {
		query = query.Where(squirrel.Eq{"suite_id": *filters.SuiteId})
	}
	if len(filters.States) > 0 {
		query = query.Where(squirrel.Eq{"state": filters.States})
	}
	if filters.Limit > 0 {
		query = query.Limit(uint64(filters.Limit))
	}

	return SqlToListOfModels(ctx, exec, query, dbmodels.AdaptEvaluationRun)
}

// LockSuiteForRunCreation takes a transaction-scoped advisory lock on the suite, serializing the
// "is there an active run" check with the run insertion.
func (repo *EvalDbRepository) LockSuiteForRunCreation(ctx context.Context, tx Transaction, suiteId uuid.UUID) error {
	_, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", suiteId.String())
	return errors.Wrap(err, "could not take suite advisory lock")
}

func (repo *EvalDbRepository) HasActiveEvaluationRun(ctx context.Context, exec Executor, suiteId uuid.UUID) (bool, error) {
	sql, args, err := NewQueryBuilder().
		Select("1").
		Prefix("SELECT EXISTS (").
		From(dbmodels.TABLE_EVALUATION_RUNS).
		Where(squirrel.Eq{"suite_id": suiteId, "state": models.ActiveEvaluationRunStates}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "can't build sql query")
	}

	var exists bool
	if err := exec.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "error checking active evaluation runs")
	}
	return exists, nil
}

func (repo *EvalDbRepository) CreateEvaluationRun(ctx context.Context, exec Executor, run models.EvaluationRunToCreate) error {
	_, err := ExecBuilder(ctx, exec,
		NewQueryBuilder().Insert(dbmodels.TABLE_EVALUATION_RUNS).
			Columns("id", "suite_id", "evaluation_type", "state").
			Values(run.Id, run.SuiteId, run.EvaluationType, models.EvaluationRunPending),
	)
	return err
}

// SnapshotApprovedTestCases copies the current version of every approved test case of the suite into
// the run items, and returns the number of items.
func (repo *EvalDbRepository) SnapshotApprovedTestCases(ctx context.Context, exec Executor, runId, suiteId uuid.UUID) (int, error) {
	selection := NewQueryBuilder().
		Select().
		Column(squirrel.Expr("?::uuid", runId)).
		Columns("tc.id", "tc.current_version", "tc.name", "v.content").
		From(dbmodels.TABLE_TEST_CASES+" AS tc").
		Join(dbmodels.TABLE_TEST_CASE_VERSIONS+" AS v ON v.test_case_id = tc.id AND v.version_number = tc.current_version").
		Where(squirrel.Eq{
			"tc.suite_id": suiteId,
			"tc.status":   models.TestCaseStatusApproved,
		}).
		Where("tc.deleted_at IS NULL")

	affected, err := ExecBuilder(ctx, exec,
		NewQueryBuilder().Insert(dbmodels.TABLE_EVALUATION_RUN_ITEMS).
			Columns("run_id", "test_case_id", "test_case_version", "test_case_name", "content").
			Select(selection.PlaceholderFormat(squirrel.Question)).
			PlaceholderFormat(squirrel.Dollar),
	)
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (repo *EvalDbRepository) MarkEvaluationRunRunning(ctx context.Context, exec Executor,
	runId uuid.UUID, total int, jobId int64, startedAt time.Time,
) error {
	affected, err := ExecBuilder(ctx, exec,
		NewQueryBuilder().Update(dbmodels.TABLE_EVALUATION_RUNS).
			Set("state", models.EvaluationRunRunning).
			Set("total_count", total).
			Set("job_id", jobId).
			Set("started_at", startedAt).
			Where(squirrel.Eq{"id": runId, "state": models.EvaluationRunPending}),
	)
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.Wrapf(models.ErrRunNotActive, "evaluation run %s is not pending", runId)
	}
	return nil
}

// FinalizeEvaluationRun writes the aggregated numbers if the run is still in the expected state. It
// returns false when another finalization won. started_at may come from another host, so completed_at
// is clamped to it.
func (repo *EvalDbRepository) FinalizeEvaluationRun(ctx context.Context, exec Executor, fin models.RunFinalization) (bool, error) {
	var latencyReport []byte
	if fin.LatencyReport != nil {
		var err error
		latencyReport, err = json.Marshal(fin.LatencyReport)
		if err != nil {
			return false, errors.Wrap(err, "could not marshal latency report")
		}
	}

	affected, err := ExecBuilder(ctx, exec,
		NewQueryBuilder().Update(dbmodels.TABLE_EVALUATION_RUNS).
			Set("state", fin.State).
			Set("total_count", fin.Stats.Total).
			Set("passed_count", fin.Stats.Passed).
			Set("failed_count", fin.Stats.Failed).
			Set("error_count", fin.Stats.Errored).
			Set("pass_rate", fin.Stats.PassRate).
			Set("latency_report", latencyReport).
			Set("completed_at", squirrel.Expr("GREATEST(started_at, ?::timestamptz)", fin.CompletedAt)).
			Set("started_at", squirrel.Expr("COALESCE(started_at, ?)", fin.CompletedAt)).
			Where(squirrel.Eq{"id": fin.RunId, "state": fin.ExpectedState}),
	)
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// RequestEvaluationRunCancellation flags an active run as cancelled. The first request timestamp is
// kept when called several times.
func (repo *EvalDbRepository) RequestEvaluationRunCancellation(ctx context.Context, exec Executor, runId uuid.UUID) (models.EvaluationRun, error) {
	run, err := SqlToOptionalModel(ctx, exec,
		NewQueryBuilder().Update(dbmodels.TABLE_EVALUATION_RUNS).
			Set("cancel_requested_at", squirrel.Expr("COALESCE(cancel_requested_at, NOW())")).
			Where(squirrel.Eq{"id": runId, "state": models.ActiveEvaluationRunStates}).
			Suffix("RETURNING "+joinColumns(dbmodels.SelectEvaluationRunColumns)),
		dbmodels.AdaptEvaluationRun,
	)
	if err != nil {
		return models.EvaluationRun{}, err
	}
	if run == nil {
		return models.EvaluationRun{}, errors.Wrapf(models.ErrRunNotActive, "evaluation run %s", runId)
	}
	return *run, nil
}

func (repo *EvalDbRepository) ListStaleEvaluationRuns(ctx context.Context, exec Executor, runningBefore time.Time) ([]models.EvaluationRun, error) {
	return SqlToListOfModels(ctx, exec,
		selectEvaluationRuns().
			Where(squirrel.Eq{"state": models.EvaluationRunRunning}).
			Where(squirrel.Lt{"started_at": runningBefore}).
			OrderBy("started_at"),
		dbmodels.AdaptEvaluationRun,
	)
}

func (repo *EvalDbRepository) UpdateEvaluationRunAnalysis(ctx context.Context, exec Executor, runId uuid.UUID, analysis string) error {
	affected, err := ExecBuilder(ctx, exec,
		NewQueryBuilder().Update(dbmodels.TABLE_EVALUATION_RUNS).
			Set("ai_analysis", analysis).
			Where(squirrel.Eq{"id": runId}),
	)
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.Wrapf(models.ErrEvaluationRunNotFound, "evaluation run %s", runId)
	}
	return nil
}

// DeleteEvaluationRun removes a terminal run, its items and its outcomes.
func (repo *EvalDbRepository) DeleteEvaluationRun(ctx context.Context, exec Executor, runId uuid.UUID) error {
	affected, err := ExecBuilder(ctx, exec,
		NewQueryBuilder().Delete(dbmodels.TABLE_EVALUATION_RUNS).
			Where(squirrel.Eq{"id": runId}).
			Where(squirrel.NotEq{"state": models.ActiveEvaluationRunStates}),
	)
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.Wrapf(models.ErrRunStillActive, "evaluation run %s", runId)
	}
	return nil
}

func (repo *EvalDbRepository) ListRunItemsWithoutOutcome(ctx context.Context, exec Executor, runId uuid.UUID) ([]models.EvaluationRunItem, error) {
	return SqlToListOfModels(ctx, exec,
		NewQueryBuilder().
			Select(columnsNames("i", dbmodels.SelectEvaluationRunItemColumns)...).
			From(dbmodels.TABLE_EVALUATION_RUN_ITEMS+" AS i").
			LeftJoin(dbmodels.TABLE_TEST_CASE_OUTCOMES+" AS o ON o.run_id = i.run_id AND o.test_case_id = i.test_case_id").
			Where(squirrel.Eq{"i.run_id": runId, "o.id": nil}).
			OrderBy("i.test_case_name", "i.test_case_id"),
		dbmodels.AdaptEvaluationRunItem,
	)
}

// CreateTestCaseOutcome is insert-only: it reports false if an outcome already exists for the case
// in this run, and the existing one is kept. The insert takes a share lock on the run and only happens
// while the run is running, so that a finalization never misses an outcome. ErrRunNotActive is
// returned once the run has been finalized.
func (repo *EvalDbRepository) CreateTestCaseOutcome(ctx context.Context, exec Executor, outcome models.TestCaseOutcome) (bool, error) {
	id := outcome.Id
	if id == uuid.Nil {
		id = uuid.Must(uuid.NewV7())
	}

	runningRun := NewQueryBuilder().
		Select("1").
		From(dbmodels.TABLE_EVALUATION_RUNS).
		Where(squirrel.Eq{"id": outcome.RunId, "state": models.EvaluationRunRunning}).
		Suffix("FOR SHARE")
	values := NewQueryBuilder().
		Select().
		Column(squirrel.Expr("?::uuid", id)).
		Column(squirrel.Expr("?::uuid", outcome.RunId)).
		Column(squirrel.Expr("?::uuid", outcome.TestCaseId)).
		Column(squirrel.Expr("?::integer", outcome.TestCaseVersion)).
		Column(squirrel.Expr("?::text", outcome.Result)).
		Column(squirrel.Expr("?::text", outcome.Detail)).
		Column(squirrel.Expr("?::bigint", outcome.Latency.Milliseconds())).
		Where(squirrel.Expr("EXISTS (?)", runningRun))

	affected, err := ExecBuilder(ctx, exec,
		NewQueryBuilder().Insert(dbmodels.TABLE_TEST_CASE_OUTCOMES).
			Columns(
				"id",
				"run_id",
				"test_case_id",
				"test_case_version",
				"result",
				"detail",
				"latency_ms",
			).
			Select(values.PlaceholderFormat(squirrel.Question)).
			Suffix("ON CONFLICT (run_id, test_case_id) DO NOTHING").
			PlaceholderFormat(squirrel.Dollar),
	)
	if IsForeignKeyViolationError(err) {
		return false, errors.Wrapf(models.NotFoundError, "evaluation run %s", outcome.RunId)
	}
	if err != nil {
		return false, err
	}
	if affected == 1 {
		return true, nil
	}

	run, err := repo.GetEvaluationRunById(ctx, exec, outcome.RunId)
	if err != nil {
		return false, err
	}
	if run.State != models.EvaluationRunRunning {
		return false, errors.Wrapf(models.ErrRunNotActive, "evaluation run %s is %s", run.Id, run.State)
	}
	return false, nil
}

// LockRunningEvaluationRun takes a row lock on the run until the end of the transaction, so that no
// outcome can be inserted while it is finalized. It reports false when the run is no longer running.
func (repo *EvalDbRepository) LockRunningEvaluationRun(ctx context.Context, tx Transaction, runId uuid.UUID) (bool, error) {
	sql, args, err := NewQueryBuilder().
		Select("id").
		From(dbmodels.TABLE_EVALUATION_RUNS).
		Where(squirrel.Eq{"id": runId, "state": models.EvaluationRunRunning}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "can't build sql query")
	}

	var id uuid.UUID
	err = tx.QueryRow(ctx, sql, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "could not lock evaluation run %s", runId)
	}
	return true, nil
}

func (repo *EvalDbRepository) ListTestCaseOutcomes(ctx context.Context, exec Executor, runId uuid.UUID) ([]models.TestCaseOutcome, error) {
	return SqlToListOfModels(ctx, exec,
		NewQueryBuilder().
			Select(dbmodels.SelectTestCaseOutcomeColumns...).
			From(dbmodels.TABLE_TEST_CASE_OUTCOMES).
			Where(squirrel.Eq{"run_id": runId}).
			OrderBy("created_at", "id"),
		dbmodels.AdaptTestCaseOutcome,
	)
}
