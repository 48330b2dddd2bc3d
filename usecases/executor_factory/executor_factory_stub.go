package executor_factory

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/checkmarble/agent-eval-backend/repositories"
)

// ExecutorFactoryStub is used by the usecase tests. The repositories are mocked there, so the pool
// only needs to hand out executors and open transactions (ExpectBegin / ExpectCommit).
type ExecutorFactoryStub struct {
	Mock pgxmock.PgxPoolIface
}

func NewExecutorFactoryStub() ExecutorFactoryStub {
	pool, err := pgxmock.NewPool()
	if err != nil {
		panic(err)
	}
	return ExecutorFactoryStub{Mock: pool}
}

type stubTx struct {
	pgx.Tx
}

func (t stubTx) RawTx() pgx.Tx { return t.Tx }

func (stub ExecutorFactoryStub) NewExecutor() repositories.Executor {
	return stub.Mock
}

func (stub ExecutorFactoryStub) Transaction(ctx context.Context, fn func(tx repositories.Transaction) error) error {
	tx, err := stub.Mock.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(stubTx{tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
