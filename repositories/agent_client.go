package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/checkmarble/agent-eval-backend/infra"
	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/utils"
)

const maxAgentResponseSize = 8 << 20

type agentRequest struct {
	TestCaseId uuid.UUID       `json:"test_case_id"`
	Version    int             `json:"version"`
	Content    json.RawMessage `json:"content"`
}

// errTransientAgentFailure marks failures worth another attempt: throttling, server errors and
// network errors.
var errTransientAgentFailure = errors.New("transient agent failure")

// AgentClient executes test cases against the conversational agent endpoint.
type AgentClient struct {
	cfg     infra.AgentConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewAgentClient(cfg infra.AgentConfig, client *http.Client) *AgentClient {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &AgentClient{
		cfg:     cfg,
		client:  client,
		limiter: limiter,
	}
}

// Execute sends the snapshot content of a run item and returns the raw agent answer. The returned
// error wraps ErrExecutionTimeout when ctx expired, ErrExecutionTransportError otherwise.
func (c *AgentClient) Execute(ctx context.Context, item models.EvaluationRunItem) (models.AgentResponse, error) {
	payload, err := json.Marshal(agentRequest{
		TestCaseId: item.TestCaseId,
		Version:    item.TestCaseVersion,
		Content:    item.Content,
	})
	if err != nil {
		return models.AgentResponse{}, errors.Wrap(err, "could not marshal agent request")
	}

	logger := utils.LoggerFromContext(ctx)
	start := time.Now()

	response, err := retry.DoWithData(
		func() (models.AgentResponse, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return models.AgentResponse{}, retry.Unrecoverable(err)
			}
			return c.post(ctx, payload)
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.MaxRetries+1)),
		retry.LastErrorOnly(true),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errTransientAgentFailure)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.DebugContext(ctx, "retrying agent call",
				"test_case_id", item.TestCaseId, "attempt", n+1, "error", err.Error())
		}),
	)
	latency := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return models.AgentResponse{Latency: latency},
				errors.Wrapf(models.ErrExecutionTimeout, "after %s: %s", latency.Round(time.Millisecond), err.Error())
		}
		if errors.Is(err, models.ErrExecutionTimeout) || errors.Is(err, models.ErrExecutionTransportError) {
			return models.AgentResponse{Latency: latency}, err
		}
		return models.AgentResponse{Latency: latency}, errors.Wrap(models.ErrExecutionTransportError, err.Error())
	}

	response.Latency = latency
	return response, nil
}

func (c *AgentClient) post(ctx context.Context, payload []byte) (models.AgentResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.EndpointUrl, bytes.NewReader(payload))
	if err != nil {
		return models.AgentResponse{}, retry.Unrecoverable(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return models.AgentResponse{}, retry.Unrecoverable(err)
		}
		if isRequestTimeout(err) {
			return models.AgentResponse{}, retry.Unrecoverable(c.requestTimeoutError(err))
		}
		// connection refused, reset, dns failures...
		return models.AgentResponse{}, errors.Mark(err, errTransientAgentFailure)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAgentResponseSize))
	if err != nil && isRequestTimeout(err) {
		return models.AgentResponse{}, retry.Unrecoverable(c.requestTimeoutError(err))
	}
	if err != nil {
		return models.AgentResponse{}, errors.Mark(errors.Wrap(err, "could not read agent response"), errTransientAgentFailure)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return models.AgentResponse{}, errors.Mark(
			fmt.Errorf("agent endpoint returned status %d", resp.StatusCode), errTransientAgentFailure)
	case resp.StatusCode >= 300:
		return models.AgentResponse{}, errors.Wrapf(models.ErrExecutionTransportError,
			"agent endpoint returned status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	if !json.Valid(body) {
		return models.AgentResponse{}, errors.Wrapf(models.ErrMalformedAgentResponse,
			"agent response is not valid json: %s", truncate(body, 200))
	}

	return models.AgentResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
	}, nil
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}

// isRequestTimeout reports an expiry of the http client timeout, as opposed to a cancelled ctx.
func isRequestTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *AgentClient) requestTimeoutError(err error) error {
	return errors.Wrapf(models.ErrExecutionTimeout, "no answer within the %s request timeout: %s",
		c.client.Timeout, err.Error())
}
