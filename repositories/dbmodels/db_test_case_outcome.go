package dbmodels

import (
	"time"

	"github.com/google/uuid"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/utils"
)

const TABLE_TEST_CASE_OUTCOMES = "test_case_outcomes"

type DBTestCaseOutcome struct {
	Id              uuid.UUID `db:"id"`
	RunId           uuid.UUID `db:"run_id"`
	TestCaseId      uuid.UUID `db:"test_case_id"`
	TestCaseVersion int       `db:"test_case_version"`
	Result          string    `db:"result"`
	Detail          string    `db:"detail"`
	LatencyMs       int64     `db:"latency_ms"`
	CreatedAt       time.Time `db:"created_at"`
}

var SelectTestCaseOutcomeColumns = utils.ColumnList[DBTestCaseOutcome]()

func AdaptTestCaseOutcome(db DBTestCaseOutcome) (models.TestCaseOutcome, error) {
	return models.TestCaseOutcome{
		Id:              db.Id,
		RunId:           db.RunId,
		TestCaseId:      db.TestCaseId,
		TestCaseVersion: db.TestCaseVersion,
		Result:          models.OutcomeResult(db.Result),
		Detail:          db.Detail,
		Latency:         time.Duration(db.LatencyMs) * time.Millisecond,
		CreatedAt:       db.CreatedAt,
	}, nil
}
