package executor_factory

import (
	"context"

	"github.com/checkmarble/agent-eval-backend/repositories"
)

type ExecutorFactory interface {
	NewExecutor() repositories.Executor
}

type TransactionFactory interface {
	Transaction(ctx context.Context, fn func(tx repositories.Transaction) error) error
}

// interfaces used by the class
type executorGetter interface {
	GetExecutor() repositories.Executor
	Transaction(ctx context.Context, fn func(tx repositories.Transaction) error) error
}

type DbExecutorFactory struct {
	executorGetter executorGetter
}

func NewDbExecutorFactory(executorGetter executorGetter) DbExecutorFactory {
	return DbExecutorFactory{
		executorGetter: executorGetter,
	}
}

func (factory DbExecutorFactory) Transaction(
	ctx context.Context,
	f func(tx repositories.Transaction) error,
) error {
	return factory.executorGetter.Transaction(ctx, f)
}

func (factory DbExecutorFactory) NewExecutor() repositories.Executor {
	return factory.executorGetter.GetExecutor()
}
