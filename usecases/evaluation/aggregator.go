package evaluation

import (
	"math"
	"slices"
	"time"

	"github.com/checkmarble/agent-eval-backend/models"
)

// PassRate returns passed/total as a percentage, or nil when nothing was executed.
func PassRate(passed, total int) *float64 {
	if total <= 0 {
		return nil
	}
	rate := float64(passed) / float64(total) * 100
	return &rate
}

func roundOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}

func RoundedPassRate(passed, total int) *float64 {
	rate := PassRate(passed, total)
	if rate == nil {
		return nil
	}
	rounded := roundOneDecimal(*rate)
	return &rounded
}

// Aggregate counts the outcomes by result. The order of the outcomes does not matter.
func Aggregate(outcomes []models.TestCaseOutcome) models.RunStats {
	var stats models.RunStats
	for _, o := range outcomes {
		switch o.Result {
		case models.OutcomePass:
			stats.Passed++
		case models.OutcomeFail:
			stats.Failed++
		default:
			stats.Errored++
		}
	}
	stats.Total = stats.Passed + stats.Failed + stats.Errored
	stats.PassRate = PassRate(stats.Passed, stats.Total)
	return stats
}

// ComputeLatencyReport summarizes the latencies of the outcomes, with nearest-rank percentiles.
func ComputeLatencyReport(outcomes []models.TestCaseOutcome) *models.LatencyReport {
	if len(outcomes) == 0 {
		return nil
	}

	latencies := make([]time.Duration, len(outcomes))
	var sum time.Duration
	for i, o := range outcomes {
		latencies[i] = o.Latency
		sum += o.Latency
	}
	slices.Sort(latencies)

	return &models.LatencyReport{
		Count:  len(latencies),
		MeanMs: roundOneDecimal(float64(sum.Microseconds()) / 1000 / float64(len(latencies))),
		P50Ms:  percentile(latencies, 50).Milliseconds(),
		P95Ms:  percentile(latencies, 95).Milliseconds(),
		MaxMs:  latencies[len(latencies)-1].Milliseconds(),
	}
}

// sorted must not be empty
func percentile(sorted []time.Duration, p int) time.Duration {
	rank := int(math.Ceil(float64(p) / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// Trend groups the completed runs by UTC day of completion. Each bucket weighs its runs by their
// number of executed cases. Runs without executed cases are ignored, days without runs are absent.
func Trend(points []models.CompletedRunPoint) []models.TrendBucket {
	type acc struct {
		passed, total, runs int
	}
	byDay := make(map[time.Time]*acc)

	for _, p := range points {
		if p.TotalCount <= 0 {
			continue
		}
		completed := p.CompletedAt.UTC()
		day := time.Date(completed.Year(), completed.Month(), completed.Day(), 0, 0, 0, 0, time.UTC)
		a, ok := byDay[day]
		if !ok {
			a = &acc{}
			byDay[day] = a
		}
		a.passed += p.PassedCount
		a.total += p.TotalCount
		a.runs++
	}

	buckets := make([]models.TrendBucket, 0, len(byDay))
	for day, a := range byDay {
		buckets = append(buckets, models.TrendBucket{
			Date:     day,
			PassRate: float64(a.passed) / float64(a.total) * 100,
			Runs:     a.runs,
		})
	}
	slices.SortFunc(buckets, func(a, b models.TrendBucket) int {
		return a.Date.Compare(b.Date)
	})
	return buckets
}
