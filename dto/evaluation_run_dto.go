package dto

import (
	"time"

	"github.com/guregu/null/v5"

	"github.com/checkmarble/agent-eval-backend/models"
)

type LatencyReport struct {
	Count  int     `json:"count"`
	MeanMs float64 `json:"mean_ms"`
	P50Ms  int64   `json:"p50_ms"`
	P95Ms  int64   `json:"p95_ms"`
	MaxMs  int64   `json:"max_ms"`
}

type EvaluationRun struct {
	Id                string         `json:"id"`
	SuiteId           string         `json:"suite_id"`
	EvaluationType    string         `json:"evaluation_type"`
	State             string         `json:"state"`
	TotalCount        int            `json:"total_count"`
	PassedCount       int            `json:"passed_count"`
	FailedCount       int            `json:"failed_count"`
	ErrorCount        int            `json:"error_count"`
	PassRate          null.Float     `json:"pass_rate"`
	LatencyReport     *LatencyReport `json:"latency_report"`
	AiAnalysis        null.String    `json:"ai_analysis"`
	CancelRequestedAt null.Time      `json:"cancel_requested_at"`
	StartedAt         null.Time      `json:"started_at"`
	CompletedAt       null.Time      `json:"completed_at"`
	CreatedAt         time.Time      `json:"created_at"`
}

func AdaptEvaluationRunDto(run models.EvaluationRun) EvaluationRun {
	out := EvaluationRun{
		Id:                run.Id.String(),
		SuiteId:           run.SuiteId.String(),
		EvaluationType:    run.EvaluationType,
		State:             string(run.State),
		TotalCount:        run.TotalCount,
		PassedCount:       run.PassedCount,
		FailedCount:       run.FailedCount,
		ErrorCount:        run.ErrorCount,
		PassRate:          null.FloatFromPtr(run.PassRate),
		AiAnalysis:        null.NewString(run.AiAnalysis, run.AiAnalysis != ""),
		CancelRequestedAt: null.TimeFromPtr(run.CancelRequestedAt),
		StartedAt:         null.TimeFromPtr(run.StartedAt),
		CompletedAt:       null.TimeFromPtr(run.CompletedAt),
		CreatedAt:         run.CreatedAt,
	}
	if run.LatencyReport != nil {
		report := LatencyReport(*run.LatencyReport)
		out.LatencyReport = &report
	}
	return out
}

type TestCaseOutcome struct {
	Id              string    `json:"id"`
	RunId           string    `json:"run_id"`
	TestCaseId      string    `json:"test_case_id"`
	TestCaseVersion int       `json:"test_case_version"`
	Result          string    `json:"result"`
	Detail          string    `json:"detail"`
	LatencyMs       int64     `json:"latency_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

func AdaptTestCaseOutcomeDto(o models.TestCaseOutcome) TestCaseOutcome {
	return TestCaseOutcome{
		Id:              o.Id.String(),
		RunId:           o.RunId.String(),
		TestCaseId:      o.TestCaseId.String(),
		TestCaseVersion: o.TestCaseVersion,
		Result:          string(o.Result),
		Detail:          o.Detail,
		LatencyMs:       o.Latency.Milliseconds(),
		CreatedAt:       o.CreatedAt,
	}
}

type StartRunBody struct {
	TestSuiteId    string `json:"test_suite_id"`
	EvaluationType string `json:"evaluation_type"`
}

type AnalyzeRunBody struct {
	Question string `json:"question"`
}
