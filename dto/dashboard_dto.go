package dto

import (
	"github.com/guregu/null/v5"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/pure_utils"
)

type TrendBucket struct {
	Date     string  `json:"date"`
	PassRate float64 `json:"pass_rate"`
	Runs     int     `json:"runs"`
}

type DashboardSummary struct {
	TotalTestCases  int             `json:"total_test_cases"`
	ApprovedCount   int             `json:"approved_count"`
	PendingCount    int             `json:"pending_count"`
	FailedCount     int             `json:"failed_count"`
	TotalRuns       int             `json:"total_runs"`
	PassRateTrend   []TrendBucket   `json:"pass_rate_trend"`
	RecentRuns      []EvaluationRun `json:"recent_runs"`
	LastRunPassRate null.Float      `json:"last_run_pass_rate"`
	AvgPassRate     null.Float      `json:"avg_pass_rate"`
	TotalPassed     int             `json:"total_passed"`
	TotalFailed     int             `json:"total_failed"`
}

func AdaptDashboardSummaryDto(s models.DashboardSummary) DashboardSummary {
	return DashboardSummary{
		TotalTestCases: s.TotalTestCases,
		ApprovedCount:  s.ApprovedCount,
		PendingCount:   s.PendingCount,
		FailedCount:    s.FailedCount,
		TotalRuns:      s.TotalRuns,
		PassRateTrend: pure_utils.Map(s.PassRateTrend, func(b models.TrendBucket) TrendBucket {
			return TrendBucket{
				Date:     b.Date.Format("2006-01-02"),
				PassRate: b.PassRate,
				Runs:     b.Runs,
			}
		}),
		RecentRuns:      pure_utils.Map(s.RecentRuns, AdaptEvaluationRunDto),
		LastRunPassRate: null.FloatFromPtr(s.LastRunPassRate),
		AvgPassRate:     null.FloatFromPtr(s.AvgPassRate),
		TotalPassed:     s.TotalPassed,
		TotalFailed:     s.TotalFailed,
	}
}
