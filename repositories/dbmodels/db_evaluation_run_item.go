package dbmodels

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/utils"
)

const TABLE_EVALUATION_RUN_ITEMS = "evaluation_run_items"

type DBEvaluationRunItem struct {
	RunId           uuid.UUID       `db:"run_id"`
	TestCaseId      uuid.UUID       `db:"test_case_id"`
	TestCaseVersion int             `db:"test_case_version"`
	TestCaseName    string          `db:"test_case_name"`
	Content         json.RawMessage `db:"content"`
}

var SelectEvaluationRunItemColumns = utils.ColumnList[DBEvaluationRunItem]()

func AdaptEvaluationRunItem(db DBEvaluationRunItem) (models.EvaluationRunItem, error) {
	return models.EvaluationRunItem{
		RunId:           db.RunId,
		TestCaseId:      db.TestCaseId,
		TestCaseVersion: db.TestCaseVersion,
		TestCaseName:    db.TestCaseName,
		Content:         db.Content,
	}, nil
}
