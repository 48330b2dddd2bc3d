package repositories

import (
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"

	"github.com/checkmarble/agent-eval-backend/repositories/clock"
)

type options struct {
	riverClient        *river.Client[pgx.Tx]
	agentClient        *AgentClient
	documentsBucketUrl string
	clock              clock.Clock
}

type Option func(*options)

func WithRiverClient(client *river.Client[pgx.Tx]) Option {
	return func(o *options) {
		o.riverClient = client
	}
}

func WithAgentClient(client *AgentClient) Option {
	return func(o *options) {
		o.agentClient = client
	}
}

func WithDocumentsBucketUrl(bucketUrl string) Option {
	return func(o *options) {
		o.documentsBucketUrl = bucketUrl
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

type Repositories struct {
	ExecutorGetter      ExecutorGetter
	EvalDbRepository    *EvalDbRepository
	TaskQueueRepository TaskQueueRepository
	AgentClient         *AgentClient
	DocumentExtractor   DocumentExtractor
	DocumentStore       *DocumentStore
	Clock               clock.Clock
}

func NewRepositories(pool *pgxpool.Pool, opts ...Option) Repositories {
	o := options{clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}

	repos := Repositories{
		ExecutorGetter:    NewExecutorGetter(pool),
		EvalDbRepository:  NewEvalDbRepository(),
		AgentClient:       o.agentClient,
		DocumentExtractor: NewDocumentExtractor(),
		DocumentStore:     NewDocumentStore(o.documentsBucketUrl),
		Clock:             o.clock,
	}
	if o.riverClient != nil {
		repos.TaskQueueRepository = NewTaskQueueRepository(o.riverClient)
	}
	return repos
}
