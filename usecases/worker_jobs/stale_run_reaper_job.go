package worker_jobs

import (
	"context"
	"time"

	"github.com/adhocore/gronx"
	"github.com/cockroachdb/errors"
	"github.com/riverqueue/river"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/utils"
)

const (
	STALE_RUN_REAPER_INTERVAL = 10 * time.Minute
	STALE_RUN_REAPER_TIMEOUT  = 2 * time.Minute
)

// cronSchedule adapts a cron expression to river's periodic schedules.
type cronSchedule struct {
	expr string
}

func (s cronSchedule) Next(current time.Time) time.Time {
	next, err := gronx.NextTickAfter(s.expr, current, false)
	if err != nil {
		// the expression is validated on creation
		return current.Add(STALE_RUN_REAPER_INTERVAL)
	}
	return next
}

// NewStaleRunReaperPeriodicJob schedules the reaper every STALE_RUN_REAPER_INTERVAL, or following the
// cron expression when one is given.
func NewStaleRunReaperPeriodicJob(cronExpr string) (*river.PeriodicJob, error) {
	var schedule river.PeriodicSchedule = river.PeriodicInterval(STALE_RUN_REAPER_INTERVAL)
	uniquePeriod := STALE_RUN_REAPER_INTERVAL
	if cronExpr != "" {
		if !gronx.New().IsValid(cronExpr) {
			return nil, errors.Newf("invalid stale run reaper schedule %q", cronExpr)
		}
		schedule = cronSchedule{expr: cronExpr}
		uniquePeriod = time.Minute
	}

	return river.NewPeriodicJob(
		schedule,
		func() (river.JobArgs, *river.InsertOpts) {
			return models.StaleRunReaperArgs{},
				&river.InsertOpts{
					Queue:    models.EVALUATION_QUEUE_NAME,
					Priority: 4,
					UniqueOpts: river.UniqueOpts{
						ByQueue:  true,
						ByPeriod: uniquePeriod,
					},
				}
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	), nil
}

type staleRunReaper interface {
	ReapStaleRuns(ctx context.Context) (int, error)
}

// StaleRunReaperWorker finalizes the runs left running by a worker that went away.
type StaleRunReaperWorker struct {
	river.WorkerDefaults[models.StaleRunReaperArgs]

	usecase staleRunReaper
}

func NewStaleRunReaperWorker(usecase staleRunReaper) *StaleRunReaperWorker {
	return &StaleRunReaperWorker{usecase: usecase}
}

func (w *StaleRunReaperWorker) Timeout(job *river.Job[models.StaleRunReaperArgs]) time.Duration {
	return STALE_RUN_REAPER_TIMEOUT
}

func (w *StaleRunReaperWorker) Work(ctx context.Context, job *river.Job[models.StaleRunReaperArgs]) error {
	reaped, err := w.usecase.ReapStaleRuns(ctx)
	if err != nil {
		return err
	}
	if reaped > 0 {
		utils.LoggerFromContext(ctx).InfoContext(ctx, "stale evaluation runs finalized", "count", reaped)
	}
	return nil
}
