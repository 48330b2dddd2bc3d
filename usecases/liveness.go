package usecases

import (
	"context"
	"time"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/repositories"
	"github.com/checkmarble/agent-eval-backend/usecases/executor_factory"
)

const livenessDbTimeout = 2 * time.Second

type livenessRepository interface {
	Liveness(ctx context.Context, exec repositories.Executor) error
}

type LivenessUsecase struct {
	executorFactory    executor_factory.ExecutorFactory
	livenessRepository livenessRepository
	agentConfigured    bool
	generationEnabled  bool
}

// Liveness fails only when the database cannot be reached. The other fields are informative.
func (u LivenessUsecase) Liveness(ctx context.Context) (models.LivenessReport, error) {
	ctx, cancel := context.WithTimeout(ctx, livenessDbTimeout)
	defer cancel()

	if err := u.livenessRepository.Liveness(ctx, u.executorFactory.NewExecutor()); err != nil {
		return models.LivenessReport{}, err
	}
	return models.LivenessReport{
		Database:          true,
		AgentConfigured:   u.agentConfigured,
		GenerationEnabled: u.generationEnabled,
	}, nil
}
