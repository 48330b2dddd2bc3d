package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestCase(e *httpexpect.Expect, suiteId, description string) string {
	return e.POST("/test-cases/generate").
		WithJSON(map[string]any{
			"description":   description,
			"test_suite_id": suiteId,
			"type_hint":     "conversation-flow",
		}).
		Expect().Status(http.StatusCreated).
		JSON().Object().
		HasValue("status", "draft").
		HasValue("current_version", 1).
		Value("id").String().NotEmpty().Raw()
}

func TestEvaluationFlow(t *testing.T) {
	e := httpexpect.Default(t, testServer.URL)
	suiteId := uuid.NewString()

	e.GET("/liveness").Expect().Status(http.StatusOK).
		JSON().Object().HasValue("status", "ok").HasValue("agent_configured", true)

	lostCardId := generateTestCase(e, suiteId, "The customer lost their card and wants it blocked")
	refundId := generateTestCase(e, suiteId, "The customer asks for a refund of a duplicate payment")

	// generating twice from the same text returns the recorded cases
	fromText := e.POST("/test-cases/from-text").
		WithJSON(map[string]any{"text": "Customers must be able to order a new card.", "test_suite_id": suiteId}).
		Expect().Status(http.StatusCreated).
		JSON().Array()
	fromText.Length().IsEqual(1)
	newCardId := fromText.Value(0).Object().Value("id").String().Raw()

	// suite_id in the query string is still accepted
	e.POST("/test-cases/from-text").
		WithQuery("suite_id", suiteId).
		WithJSON(map[string]any{"text": "Customers must be able to order a new card."}).
		Expect().Status(http.StatusCreated).
		JSON().Array().
		Value(0).Object().HasValue("id", newCardId)

	for _, id := range []string{lostCardId, refundId} {
		e.POST("/test-cases/{id}/approve", id).
			WithJSON(map[string]any{"action": "approve", "expected_version": 1}).
			Expect().Status(http.StatusOK).
			JSON().Object().HasValue("status", "approved")
	}

	// approving twice is not a legal transition
	e.POST("/test-cases/{id}/approve", lostCardId).
		WithJSON(map[string]any{"action": "approve"}).
		Expect().Status(http.StatusBadRequest)

	// retry without feedback is rejected, with feedback it schedules a regeneration
	e.POST("/test-cases/{id}/approve", newCardId).
		WithJSON(map[string]any{"action": "retry"}).
		Expect().Status(http.StatusBadRequest)
	e.POST("/test-cases/{id}/approve", newCardId).
		WithJSON(map[string]any{"action": "retry", "feedback": "mention the mobile app"}).
		Expect().Status(http.StatusOK).
		JSON().Object().HasValue("status", "retry")

	require.Eventually(t, func() bool {
		tc := e.GET("/test-cases/{id}", newCardId).
			Expect().Status(http.StatusOK).
			JSON().Object().Raw()
		return tc["status"] == "draft" && tc["current_version"] == float64(2)
	}, 10*time.Second, 100*time.Millisecond)

	e.GET("/test-cases/{id}/versions", newCardId).
		Expect().Status(http.StatusOK).
		JSON().Array().Length().IsEqual(2)
	e.GET("/test-cases/{id}/approvals", newCardId).
		Expect().Status(http.StatusOK).
		JSON().Array().Length().IsEqual(1)

	runId := e.POST("/evaluations/run").
		WithJSON(map[string]any{"test_suite_id": suiteId}).
		Expect().Status(http.StatusCreated).
		JSON().Object().
		Value("id").String().NotEmpty().Raw()

	var run map[string]any
	require.Eventually(t, func() bool {
		run = e.GET("/evaluations/runs/{id}", runId).
			Expect().Status(http.StatusOK).
			JSON().Object().Raw()
		return run["state"] == "completed"
	}, 20*time.Second, 100*time.Millisecond)

	// only the two approved cases were snapshotted
	assert.Equal(t, float64(2), run["total_count"])
	assert.Equal(t, float64(1), run["passed_count"])
	assert.Equal(t, float64(1), run["failed_count"])
	assert.Equal(t, float64(0), run["error_count"])
	assert.InDelta(t, 50.0, run["pass_rate"], 0.001)
	assert.NotNil(t, run["latency_report"])

	results := e.GET("/evaluations/runs/{id}/results", runId).
		Expect().Status(http.StatusOK).
		JSON().Array()
	results.Length().IsEqual(2)
	for _, r := range results.Iter() {
		outcome := r.Object()
		switch outcome.Value("test_case_id").String().Raw() {
		case lostCardId:
			outcome.HasValue("result", "pass")
		case refundId:
			outcome.HasValue("result", "fail")
			outcome.Value("detail").String().Contains("I cannot help with that.")
		default:
			t.Errorf("unexpected outcome for test case %s", outcome.Value("test_case_id").String().Raw())
		}
	}

	// a finished run can no longer be cancelled
	e.POST("/evaluations/runs/{id}/cancel", runId).
		Expect().Status(http.StatusBadRequest)

	e.GET("/evaluations/runs").
		WithQuery("test_suite_id", suiteId).
		Expect().Status(http.StatusOK).
		JSON().Array().Length().IsEqual(1)

	e.GET("/test-cases").
		WithQuery("test_suite_id", suiteId).
		WithQuery("status_filter", "approved").
		Expect().Status(http.StatusOK).
		JSON().Array().Length().IsEqual(2)

	summary := e.GET("/dashboard/summary").
		WithQuery("test_suite_id", suiteId).
		Expect().Status(http.StatusOK).
		JSON().Object()
	summary.HasValue("total_test_cases", 3)
	summary.HasValue("approved_count", 2)
	summary.HasValue("pending_count", 1)
	summary.HasValue("total_runs", 1)
	summary.HasValue("total_passed", 1)
	summary.HasValue("total_failed", 1)
	summary.HasValue("last_run_pass_rate", 50)
	summary.Value("pass_rate_trend").Array().Length().IsEqual(1)
	summary.Value("recent_runs").Array().Length().IsEqual(1)

	e.DELETE("/evaluations/runs/{id}", runId).
		Expect().Status(http.StatusNoContent)
	e.GET("/evaluations/runs/{id}", runId).
		Expect().Status(http.StatusNotFound)

	e.DELETE("/test-cases/{id}", refundId).
		Expect().Status(http.StatusNoContent)
	e.GET("/test-cases/{id}", refundId).
		Expect().Status(http.StatusNotFound)
}

func TestEvaluationRun_emptySuite(t *testing.T) {
	e := httpexpect.Default(t, testServer.URL)
	suiteId := uuid.NewString()

	runId := e.POST("/evaluations/run").
		WithJSON(map[string]any{"test_suite_id": suiteId, "evaluation_type": "smoke"}).
		Expect().Status(http.StatusCreated).
		JSON().Object().
		HasValue("evaluation_type", "smoke").
		Value("id").String().Raw()

	require.Eventually(t, func() bool {
		run := e.GET("/evaluations/runs/{id}", runId).
			Expect().Status(http.StatusOK).
			JSON().Object().Raw()
		return run["state"] == "completed" && run["total_count"] == float64(0) && run["pass_rate"] == nil
	}, 10*time.Second, 100*time.Millisecond)
}
