package worker_jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/checkmarble/agent-eval-backend/models"
)

type evaluationRunExecutor interface {
	ExecuteRun(ctx context.Context, runId uuid.UUID) error
}

// EvaluationRunWorker executes the snapshot of an evaluation run. A retried job resumes with the cases
// that have no outcome yet.
type EvaluationRunWorker struct {
	river.WorkerDefaults[models.EvaluationRunArgs]

	usecase evaluationRunExecutor
	timeout time.Duration
}

func NewEvaluationRunWorker(usecase evaluationRunExecutor, timeout time.Duration) *EvaluationRunWorker {
	return &EvaluationRunWorker{
		usecase: usecase,
		timeout: timeout,
	}
}

func (w *EvaluationRunWorker) Timeout(job *river.Job[models.EvaluationRunArgs]) time.Duration {
	return w.timeout
}

func (w *EvaluationRunWorker) Work(ctx context.Context, job *river.Job[models.EvaluationRunArgs]) error {
	return w.usecase.ExecuteRun(ctx, job.Args.RunId)
}
