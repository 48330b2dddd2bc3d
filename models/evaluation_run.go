package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EvaluationRunState string

const (
	EvaluationRunPending   EvaluationRunState = "pending"
	EvaluationRunRunning   EvaluationRunState = "running"
	EvaluationRunCompleted EvaluationRunState = "completed"
	EvaluationRunError     EvaluationRunState = "error"
)

func (s EvaluationRunState) IsTerminal() bool {
	return s == EvaluationRunCompleted || s == EvaluationRunError
}

func EvaluationRunStateFrom(s string) EvaluationRunState {
	switch EvaluationRunState(s) {
	case EvaluationRunPending, EvaluationRunRunning, EvaluationRunCompleted, EvaluationRunError:
		return EvaluationRunState(s)
	}
	return EvaluationRunError
}

var ActiveEvaluationRunStates = []EvaluationRunState{EvaluationRunPending, EvaluationRunRunning}

const DefaultEvaluationType = "standard"

type EvaluationRun struct {
	Id                uuid.UUID
	SuiteId           uuid.UUID
	EvaluationType    string
	State             EvaluationRunState
	TotalCount        int
	PassedCount       int
	FailedCount       int
	ErrorCount        int
	PassRate          *float64
	LatencyReport     *LatencyReport
	AiAnalysis        string
	JobId             *int64
	CancelRequestedAt *time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
	CreatedAt         time.Time
}

type EvaluationRunFilters struct {
	SuiteId *uuid.UUID
	States  []EvaluationRunState
	Limit   int
}

type EvaluationRunToCreate struct {
	Id             uuid.UUID
	SuiteId        uuid.UUID
	EvaluationType string
}

// RunFinalization carries the aggregated numbers written once, when the run leaves the running state.
type RunFinalization struct {
	RunId         uuid.UUID
	ExpectedState EvaluationRunState
	State         EvaluationRunState
	Stats         RunStats
	LatencyReport *LatencyReport
	CompletedAt   time.Time
}

// EvaluationRunItem is one entry of the eligible-set snapshot taken when the run starts. The content
// is copied from the approved version so that the run executes immutable data.
type EvaluationRunItem struct {
	RunId           uuid.UUID
	TestCaseId      uuid.UUID
	TestCaseVersion int
	TestCaseName    string
	Content         json.RawMessage
}

type OutcomeResult string

const (
	OutcomePass  OutcomeResult = "pass"
	OutcomeFail  OutcomeResult = "fail"
	OutcomeError OutcomeResult = "error"
)

type TestCaseOutcome struct {
	Id              uuid.UUID
	RunId           uuid.UUID
	TestCaseId      uuid.UUID
	TestCaseVersion int
	Result          OutcomeResult
	Detail          string
	Latency         time.Duration
	CreatedAt       time.Time
}

type RunStats struct {
	Total    int
	Passed   int
	Failed   int
	Errored  int
	PassRate *float64
}

type LatencyReport struct {
	Count  int     `json:"count"`
	MeanMs float64 `json:"mean_ms"`
	P50Ms  int64   `json:"p50_ms"`
	P95Ms  int64   `json:"p95_ms"`
	MaxMs  int64   `json:"max_ms"`
}

// AgentResponse is the raw answer of the conversational agent for one test case.
type AgentResponse struct {
	Body       json.RawMessage
	StatusCode int
	Latency    time.Duration
}

type Verdict struct {
	Result OutcomeResult
	Detail string
}
