package usecases

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/repositories"
	"github.com/checkmarble/agent-eval-backend/usecases/evaluation"
	"github.com/checkmarble/agent-eval-backend/usecases/executor_factory"
	"github.com/checkmarble/agent-eval-backend/usecases/generation"
)

// Runs still running this long after RunTimeout are finalized by the reaper.
const STALE_RUN_MARGIN = 5 * time.Minute

type EvaluationConfig struct {
	SingleActiveRunPerSuite bool
	ExecutionConcurrency    int
	CaseTimeout             time.Duration
	CancelGracePeriod       time.Duration
	RunTimeout              time.Duration
	SimilarityThreshold     float64
	ReviewPolicy            models.ReviewPolicy
}

func DefaultEvaluationConfig() EvaluationConfig {
	return EvaluationConfig{
		SingleActiveRunPerSuite: true,
		ExecutionConcurrency:    evaluation.DEFAULT_EXECUTION_CONCURRENCY,
		CaseTimeout:             evaluation.DEFAULT_CASE_TIMEOUT,
		CancelGracePeriod:       evaluation.DEFAULT_CANCEL_GRACE_PERIOD,
		RunTimeout:              time.Hour,
		SimilarityThreshold:     evaluation.DEFAULT_SIMILARITY_THRESHOLD,
	}
}

func (c EvaluationConfig) Validate() error {
	if c.ExecutionConcurrency < 1 {
		return errors.New("execution concurrency must be at least 1")
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return errors.New("similarity threshold must be between 0 and 1")
	}
	if c.CaseTimeout <= 0 || c.RunTimeout <= 0 {
		return errors.New("case and run timeouts must be positive")
	}
	return nil
}

func (c EvaluationConfig) RunnerConfig() evaluation.RunnerConfig {
	return evaluation.RunnerConfig{
		Concurrency:       c.ExecutionConcurrency,
		CaseTimeout:       c.CaseTimeout,
		CancelGracePeriod: c.CancelGracePeriod,
	}
}

type Usecases struct {
	Repositories      repositories.Repositories
	evaluationConfig  EvaluationConfig
	generationAdapter *generation.Adapter
}

type Option func(*options)

func WithEvaluationConfig(cfg EvaluationConfig) Option {
	return func(o *options) {
		o.evaluationConfig = cfg
	}
}

func WithGenerationAdapter(adapter generation.Adapter) Option {
	return func(o *options) {
		o.generationAdapter = &adapter
	}
}

type options struct {
	evaluationConfig  EvaluationConfig
	generationAdapter *generation.Adapter
}

func NewUsecases(repositories repositories.Repositories, opts ...Option) Usecases {
	o := &options{evaluationConfig: DefaultEvaluationConfig()}
	for _, opt := range opts {
		opt(o)
	}
	return Usecases{
		Repositories:      repositories,
		evaluationConfig:  o.evaluationConfig,
		generationAdapter: o.generationAdapter,
	}
}

func (usecases *Usecases) EvaluationConfig() EvaluationConfig {
	return usecases.evaluationConfig
}

func (usecases *Usecases) NewExecutorFactory() executor_factory.ExecutorFactory {
	return executor_factory.NewDbExecutorFactory(usecases.Repositories.ExecutorGetter)
}

func (usecases *Usecases) NewTransactionFactory() executor_factory.TransactionFactory {
	return executor_factory.NewDbExecutorFactory(usecases.Repositories.ExecutorGetter)
}

func (usecases *Usecases) NewLivenessUsecase() LivenessUsecase {
	return LivenessUsecase{
		executorFactory:    usecases.NewExecutorFactory(),
		livenessRepository: usecases.Repositories.EvalDbRepository,
		agentConfigured:    usecases.Repositories.AgentClient != nil,
		generationEnabled:  usecases.generationAdapter != nil,
	}
}

func (usecases *Usecases) NewTestCaseUsecase() TestCaseUsecase {
	uc := TestCaseUsecase{
		executorFactory:     usecases.NewExecutorFactory(),
		transactionFactory:  usecases.NewTransactionFactory(),
		repository:          usecases.Repositories.EvalDbRepository,
		taskQueueRepository: usecases.Repositories.TaskQueueRepository,
		documentExtractor:   usecases.Repositories.DocumentExtractor,
		documentStore:       usecases.Repositories.DocumentStore,
		reviewPolicy:        usecases.evaluationConfig.ReviewPolicy,
	}
	if usecases.generationAdapter != nil {
		uc.generator = usecases.generationAdapter
	}
	return uc
}

func (usecases *Usecases) NewEvaluationRunUsecase() EvaluationRunUsecase {
	uc := EvaluationRunUsecase{
		executorFactory:     usecases.NewExecutorFactory(),
		transactionFactory:  usecases.NewTransactionFactory(),
		repository:          usecases.Repositories.EvalDbRepository,
		taskQueueRepository: usecases.Repositories.TaskQueueRepository,
		clock:               usecases.Repositories.Clock,
		config:              usecases.evaluationConfig,
	}
	if usecases.Repositories.AgentClient != nil {
		uc.runner = evaluation.NewRunner(
			usecases.Repositories.AgentClient,
			evaluation.NewExpectationJudge(usecases.evaluationConfig.SimilarityThreshold),
			usecases.evaluationConfig.RunnerConfig(),
		)
	}
	if usecases.generationAdapter != nil {
		uc.analyzer = usecases.generationAdapter
	}
	return uc
}

func (usecases *Usecases) NewDashboardUsecase() DashboardUsecase {
	return DashboardUsecase{
		executorFactory: usecases.NewExecutorFactory(),
		repository:      usecases.Repositories.EvalDbRepository,
	}
}
