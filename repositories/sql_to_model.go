package repositories

import (
	"context"
	"fmt"
	"reflect"

	"github.com/checkmarble/agent-eval-backend/models"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
)

// executes the sql query with the given executor and returns a list of models using the provided adapter
func SqlToListOfModels[DBModel, Model any](
	ctx context.Context,
	exec Executor,
	query squirrel.Sqlizer,
	adapter func(dbModel DBModel) (Model, error),
) ([]Model, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "can't build sql query")
	}

	rows, err := exec.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing sql query")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Model, error) {
		dbModel, err := pgx.RowToStructByName[DBModel](row)
		if err != nil {
			var zeroModel Model
			return zeroModel, errors.Wrap(err, fmt.Sprintf("error scanning row to struct %T", dbModel))
		}
		return adapter(dbModel)
	})
}

// executes the sql query with the given executor and returns a model using the provided adapter
// If no result is returned by the query, returns nil
func SqlToOptionalModel[DBModel, Model any](
	ctx context.Context,
	exec Executor,
	query squirrel.Sqlizer,
	adapter func(dbModel DBModel) (Model, error),
) (*Model, error) {
	modelsList, err := SqlToListOfModels(ctx, exec, query, adapter)
	if err != nil {
		return nil, err
	}

	numberOfResults := len(modelsList)
	if numberOfResults == 0 {
		return nil, nil
	}
	model := modelsList[0]
	if numberOfResults > 1 {
		return nil, errors.New(fmt.Sprintf("expect 1 or 0 %v, %d rows in the result", reflect.TypeOf(model), numberOfResults))
	}
	return &model, nil
}

// executes the sql query with the given executor and returns a model using the provided adapter
// if no result is returned by the query, returns a NotFoundError
func SqlToModel[DBModel, Model any](
	ctx context.Context,
	exec Executor,
	query squirrel.Sqlizer,
	adapter func(dbModel DBModel) (Model, error),
) (Model, error) {
	model, err := SqlToOptionalModel(ctx, exec, query, adapter)
	var zeroModel Model
	if err != nil {
		return zeroModel, err
	}
	if model == nil {
		return zeroModel, errors.Wrap(models.NotFoundError, fmt.Sprintf("found no object of type %T", zeroModel))
	}
	return *model, nil
}

// executes a statement built with squirrel and returns the number of affected rows
func ExecBuilder(ctx context.Context, exec Executor, builder squirrel.Sqlizer) (int64, error) {
	sql, args, err := builder.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "can't build sql query")
	}

	tag, err := exec.Exec(ctx, sql, args...)
	if err != nil {
		return 0, errors.Wrap(err, "error executing sql query")
	}
	return tag.RowsAffected(), nil
}
