package evaluation

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkmarble/agent-eval-backend/models"
)

type executorFunc func(ctx context.Context, item models.EvaluationRunItem) (models.AgentResponse, error)

func (f executorFunc) Execute(ctx context.Context, item models.EvaluationRunItem) (models.AgentResponse, error) {
	return f(ctx, item)
}

type outcomeCollector struct {
	mu       sync.Mutex
	outcomes []models.TestCaseOutcome
}

func (c *outcomeCollector) record(ctx context.Context, outcome models.TestCaseOutcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, outcome)
	return nil
}

func (c *outcomeCollector) byTestCase() map[uuid.UUID]models.TestCaseOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := make(map[uuid.UUID]models.TestCaseOutcome, len(c.outcomes))
	for _, o := range c.outcomes {
		m[o.TestCaseId] = o
	}
	return m
}

func runItems(n int) []models.EvaluationRunItem {
	items := make([]models.EvaluationRunItem, n)
	for i := range items {
		items[i] = models.EvaluationRunItem{
			TestCaseId:      uuid.New(),
			TestCaseVersion: 1,
			Content:         json.RawMessage(`{"golden":{"turns":[{"expectedAgentResponse":"ok"}]}}`),
		}
	}
	return items
}

func passingResponse() models.AgentResponse {
	return models.AgentResponse{Body: json.RawMessage(`{"passed": true}`), StatusCode: 200}
}

func TestRunner_boundedConcurrency(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	executor := executorFunc(func(ctx context.Context, item models.EvaluationRunItem) (models.AgentResponse, error) {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			prev := maxInFlight.Load()
			if current <= prev || maxInFlight.CompareAndSwap(prev, current) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return passingResponse(), nil
	})

	collector := &outcomeCollector{}
	runner := NewRunner(executor, NewExpectationJudge(0), RunnerConfig{Concurrency: 3, CaseTimeout: time.Second})

	err := runner.Run(context.Background(), uuid.New(), runItems(12), collector.record)
	require.NoError(t, err)

	assert.Len(t, collector.outcomes, 12)
	assert.LessOrEqual(t, maxInFlight.Load(), int32(3))
	for _, o := range collector.outcomes {
		assert.Equal(t, models.OutcomePass, o.Result)
	}
}

func TestRunner_timeoutAndTransportErrors(t *testing.T) {
	items := runItems(3)
	slow, broken, fine := items[0].TestCaseId, items[1].TestCaseId, items[2].TestCaseId

	executor := executorFunc(func(ctx context.Context, item models.EvaluationRunItem) (models.AgentResponse, error) {
		switch item.TestCaseId {
		case slow:
			<-ctx.Done()
			return models.AgentResponse{}, errors.Wrap(models.ErrExecutionTimeout, ctx.Err().Error())
		case broken:
			return models.AgentResponse{}, errors.Wrap(models.ErrExecutionTransportError, "connection refused")
		}
		return passingResponse(), nil
	})

	collector := &outcomeCollector{}
	runner := NewRunner(executor, NewExpectationJudge(0), RunnerConfig{Concurrency: 3, CaseTimeout: 50 * time.Millisecond})

	require.NoError(t, runner.Run(context.Background(), uuid.New(), items, collector.record))

	got := collector.byTestCase()
	assert.Equal(t, models.OutcomeError, got[slow].Result)
	assert.Contains(t, got[slow].Detail, "timed out")
	assert.Equal(t, models.OutcomeError, got[broken].Result)
	assert.Contains(t, got[broken].Detail, "connection refused")
	assert.Equal(t, models.OutcomePass, got[fine].Result)
}

func TestRunner_malformedResponseIsAnError(t *testing.T) {
	executor := executorFunc(func(ctx context.Context, item models.EvaluationRunItem) (models.AgentResponse, error) {
		return models.AgentResponse{Body: json.RawMessage(`{"hello": "world"}`)}, nil
	})
	collector := &outcomeCollector{}
	runner := NewRunner(executor, NewExpectationJudge(0), RunnerConfig{})

	require.NoError(t, runner.Run(context.Background(), uuid.New(), runItems(1), collector.record))
	require.Len(t, collector.outcomes, 1)
	assert.Equal(t, models.OutcomeError, collector.outcomes[0].Result)
}

func TestRunner_cancellationStopsDispatchAndDropsAbandonedCases(t *testing.T) {
	items := runItems(6)
	quick, stuck := items[0].TestCaseId, items[1].TestCaseId

	started := make(chan struct{}, len(items))
	release := make(chan struct{})
	var executed atomic.Int32

	executor := executorFunc(func(ctx context.Context, item models.EvaluationRunItem) (models.AgentResponse, error) {
		executed.Add(1)
		started <- struct{}{}
		switch item.TestCaseId {
		case quick:
			<-release
			return passingResponse(), nil
		case stuck:
			<-ctx.Done()
			return models.AgentResponse{}, ctx.Err()
		}
		return passingResponse(), nil
	})

	collector := &outcomeCollector{}
	runner := NewRunner(executor, NewExpectationJudge(0), RunnerConfig{
		Concurrency:       2,
		CaseTimeout:       10 * time.Second,
		CancelGracePeriod: 100 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- runner.Run(ctx, uuid.New(), items, collector.record)
	}()

	<-started
	<-started
	cancel()
	// finishes within the grace period
	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not return after the grace period")
	}

	got := collector.byTestCase()
	assert.Len(t, got, 1)
	assert.Equal(t, models.OutcomePass, got[quick].Result)
	_, stuckRecorded := got[stuck]
	assert.False(t, stuckRecorded)
	assert.Equal(t, int32(2), executed.Load())
}

func TestRunner_recordErrorIsReturned(t *testing.T) {
	executor := executorFunc(func(ctx context.Context, item models.EvaluationRunItem) (models.AgentResponse, error) {
		return passingResponse(), nil
	})
	runner := NewRunner(executor, NewExpectationJudge(0), RunnerConfig{})

	err := runner.Run(context.Background(), uuid.New(), runItems(2), func(ctx context.Context, outcome models.TestCaseOutcome) error {
		return errors.New("database is gone")
	})
	assert.ErrorContains(t, err, "database is gone")
}

func TestRunner_recordErrorStopsDispatch(t *testing.T) {
	var executed atomic.Int32
	executor := executorFunc(func(ctx context.Context, item models.EvaluationRunItem) (models.AgentResponse, error) {
		executed.Add(1)
		return passingResponse(), nil
	})
	runner := NewRunner(executor, NewExpectationJudge(0), RunnerConfig{Concurrency: 1})

	err := runner.Run(context.Background(), uuid.New(), runItems(5), func(ctx context.Context, outcome models.TestCaseOutcome) error {
		return errors.Wrap(models.ErrRunNotActive, "evaluation run is error")
	})

	assert.ErrorIs(t, err, models.ErrRunNotActive)
	assert.Equal(t, int32(1), executed.Load())
}
