package repositories

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/utils"
)

const (
	nbRetriesEvaluationRun = 3 // a retried run resumes with the cases that have no outcome yet
	priorityEvaluationRun  = 2 // nb: higher number is lower priority (between 1 and 4)
	nbRetriesRegeneration  = 5
	priorityRegeneration   = 1
)

type TaskQueueRepository interface {
	EnqueueEvaluationRunTask(ctx context.Context, tx Transaction, runId uuid.UUID) (int64, error)
	EnqueueTestCaseRegenerationTask(ctx context.Context, tx Transaction, args models.TestCaseRegenerationArgs) error
	// CancelJob returns true if the job was cancelled before any worker picked it up. A running job
	// is cancelled cooperatively and the call returns false.
	CancelJob(ctx context.Context, tx Transaction, jobId int64) (bool, error)
}

type riverRepository struct {
	client *river.Client[pgx.Tx]
}

func NewTaskQueueRepository(client *river.Client[pgx.Tx]) TaskQueueRepository {
	return riverRepository{client: client}
}

func (r riverRepository) EnqueueEvaluationRunTask(ctx context.Context, tx Transaction, runId uuid.UUID) (int64, error) {
	res, err := r.client.InsertTx(ctx, tx.RawTx(), models.EvaluationRunArgs{
		RunId: runId,
	}, &river.InsertOpts{
		MaxAttempts: nbRetriesEvaluationRun,
		Priority:    priorityEvaluationRun,
		Queue:       models.EVALUATION_QUEUE_NAME,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
		},
	})
	if err != nil {
		return 0, err
	}
	logger := utils.LoggerFromContext(ctx)
	logger.DebugContext(ctx, "Enqueued evaluation run task", "run_id", runId, "job_id", res.Job.ID)
	return res.Job.ID, nil
}

func (r riverRepository) EnqueueTestCaseRegenerationTask(ctx context.Context, tx Transaction, args models.TestCaseRegenerationArgs) error {
	res, err := r.client.InsertTx(ctx, tx.RawTx(), args, &river.InsertOpts{
		MaxAttempts: nbRetriesRegeneration,
		Priority:    priorityRegeneration,
		Queue:       models.GENERATION_QUEUE_NAME,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
		},
	})
	if err != nil {
		return err
	}
	logger := utils.LoggerFromContext(ctx)
	logger.DebugContext(ctx, "Enqueued test case regeneration task",
		"test_case_id", args.TestCaseId, "from_version", args.FromVersion, "job_id", res.Job.ID)
	return nil
}

func (r riverRepository) CancelJob(ctx context.Context, tx Transaction, jobId int64) (bool, error) {
	job, err := r.client.JobCancelTx(ctx, tx.RawTx(), jobId)
	if errors.Is(err, river.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "could not cancel job %d", jobId)
	}
	return job.State == rivertype.JobStateCancelled, nil
}
