package models

import (
	"github.com/google/uuid"
)

// execute the snapshot of an evaluation run against the agent endpoint
type EvaluationRunArgs struct {
	RunId uuid.UUID `json:"run_id"`
}

func (EvaluationRunArgs) Kind() string { return "evaluation_run" }

// regenerate a test case after a "retry" reviewer action
type TestCaseRegenerationArgs struct {
	TestCaseId  uuid.UUID `json:"test_case_id"`
	FromVersion int       `json:"from_version"`
	Feedback    string    `json:"feedback"`
	Actor       string    `json:"actor"`
}

func (TestCaseRegenerationArgs) Kind() string { return "test_case_regeneration" }

// periodic job that finalizes runs whose worker disappeared
type StaleRunReaperArgs struct{}

func (StaleRunReaperArgs) Kind() string { return "stale_run_reaper" }

const (
	EVALUATION_QUEUE_NAME = "evaluation"
	GENERATION_QUEUE_NAME = "generation"
)
