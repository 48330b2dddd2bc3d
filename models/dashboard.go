package models

import (
	"time"
)

type DashboardSummary struct {
	TotalTestCases  int
	ApprovedCount   int
	PendingCount    int
	FailedCount     int // test cases in the "denied" status
	TotalRuns       int
	PassRateTrend   []TrendBucket
	RecentRuns      []EvaluationRun
	LastRunPassRate *float64
	AvgPassRate     *float64
	TotalPassed     int
	TotalFailed     int
}

type TrendBucket struct {
	Date     time.Time
	PassRate float64
	Runs     int
}

// CompletedRunPoint is the minimal projection of a completed run used to compute the trend.
type CompletedRunPoint struct {
	CompletedAt time.Time
	PassedCount int
	TotalCount  int
}

type RunTotals struct {
	Passed int
	Failed int
}
