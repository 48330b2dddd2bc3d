package worker_jobs

import (
	"context"
	"time"

	"github.com/riverqueue/river"

	"github.com/checkmarble/agent-eval-backend/models"
)

const TEST_CASE_REGENERATION_TIMEOUT = 5 * time.Minute

type testCaseRegenerator interface {
	RegenerateTestCase(ctx context.Context, args models.TestCaseRegenerationArgs) error
}

type TestCaseRegenerationWorker struct {
	river.WorkerDefaults[models.TestCaseRegenerationArgs]

	usecase testCaseRegenerator
}

func NewTestCaseRegenerationWorker(usecase testCaseRegenerator) *TestCaseRegenerationWorker {
	return &TestCaseRegenerationWorker{usecase: usecase}
}

func (w *TestCaseRegenerationWorker) Timeout(job *river.Job[models.TestCaseRegenerationArgs]) time.Duration {
	return TEST_CASE_REGENERATION_TIMEOUT
}

func (w *TestCaseRegenerationWorker) Work(ctx context.Context, job *river.Job[models.TestCaseRegenerationArgs]) error {
	return w.usecase.RegenerateTestCase(ctx, job.Args)
}
