package dbmodels

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/guregu/null/v5"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/utils"
)

const TABLE_EVALUATION_RUNS = "evaluation_runs"

type DBEvaluationRun struct {
	Id                uuid.UUID   `db:"id"`
	SuiteId           uuid.UUID   `db:"suite_id"`
	EvaluationType    string      `db:"evaluation_type"`
	State             string      `db:"state"`
	TotalCount        int         `db:"total_count"`
	PassedCount       int         `db:"passed_count"`
	FailedCount       int         `db:"failed_count"`
	ErrorCount        int         `db:"error_count"`
	PassRate          null.Float  `db:"pass_rate"`
	LatencyReport     []byte      `db:"latency_report"`
	AiAnalysis        null.String `db:"ai_analysis"`
	JobId             null.Int    `db:"job_id"`
	CancelRequestedAt null.Time   `db:"cancel_requested_at"`
	StartedAt         null.Time   `db:"started_at"`
	CompletedAt       null.Time   `db:"completed_at"`
	CreatedAt         time.Time   `db:"created_at"`
}

var SelectEvaluationRunColumns = utils.ColumnList[DBEvaluationRun]()

func AdaptEvaluationRun(db DBEvaluationRun) (models.EvaluationRun, error) {
	run := models.EvaluationRun{
		Id:                db.Id,
		SuiteId:           db.SuiteId,
		EvaluationType:    db.EvaluationType,
		State:             models.EvaluationRunStateFrom(db.State),
		TotalCount:        db.TotalCount,
		PassedCount:       db.PassedCount,
		FailedCount:       db.FailedCount,
		ErrorCount:        db.ErrorCount,
		PassRate:          db.PassRate.Ptr(),
		AiAnalysis:        db.AiAnalysis.String,
		JobId:             db.JobId.Ptr(),
		CancelRequestedAt: db.CancelRequestedAt.Ptr(),
		StartedAt:         db.StartedAt.Ptr(),
		CompletedAt:       db.CompletedAt.Ptr(),
		CreatedAt:         db.CreatedAt,
	}

	if len(db.LatencyReport) > 0 {
		var report models.LatencyReport
		if err := json.Unmarshal(db.LatencyReport, &report); err != nil {
			return models.EvaluationRun{}, errors.Wrap(err, "could not unmarshal latency report")
		}
		run.LatencyReport = &report
	}

	return run, nil
}

// DBCompletedRunPoint is read by the dashboard trend query.
type DBCompletedRunPoint struct {
	CompletedAt time.Time `db:"completed_at"`
	PassedCount int       `db:"passed_count"`
	TotalCount  int       `db:"total_count"`
}

func AdaptCompletedRunPoint(db DBCompletedRunPoint) (models.CompletedRunPoint, error) {
	return models.CompletedRunPoint{
		CompletedAt: db.CompletedAt,
		PassedCount: db.PassedCount,
		TotalCount:  db.TotalCount,
	}, nil
}
