package evaluation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/checkmarble/agent-eval-backend/models"
)

var goldenContent = json.RawMessage(`{
	"golden": {
		"turns": [
			{"userInput": "I lost my card", "expectedAgentResponse": "I have blocked your card"},
			{"userInput": "Thanks", "expectedAgentResponse": "You are welcome"}
		]
	}
}`)

func response(body string) models.AgentResponse {
	return models.AgentResponse{Body: json.RawMessage(body), StatusCode: 200}
}

func TestJudge_explicitVerdict(t *testing.T) {
	judge := NewExpectationJudge(0)

	verdict, err := judge.Judge(goldenContent, response(`{"passed": true}`))
	assert.NoError(t, err)
	assert.Equal(t, models.OutcomePass, verdict.Result)

	verdict, err = judge.Judge(goldenContent, response(`{"passed": false, "failureReason": "tool call missing"}`))
	assert.NoError(t, err)
	assert.Equal(t, models.OutcomeFail, verdict.Result)
	assert.Equal(t, "tool call missing", verdict.Detail)
}

func TestJudge_turnComparison(t *testing.T) {
	judge := NewExpectationJudge(0)

	verdict, err := judge.Judge(goldenContent, response(`{"turns": [
		{"agentResponse": "Sure. I HAVE BLOCKED YOUR   CARD, a new one is on its way."},
		{"agentResponse": "You are welcome!"}
	]}`))
	assert.NoError(t, err)
	assert.Equal(t, models.OutcomePass, verdict.Result)
}

func TestJudge_turnMismatch(t *testing.T) {
	judge := NewExpectationJudge(0)

	verdict, err := judge.Judge(goldenContent, response(`{"turns": [
		{"agentResponse": "Please call your bank."},
		{"agentResponse": "You are welcome"}
	]}`))
	assert.NoError(t, err)
	assert.Equal(t, models.OutcomeFail, verdict.Result)
	assert.Contains(t, verdict.Detail, "turn 1")
}

func TestJudge_missingTurn(t *testing.T) {
	judge := NewExpectationJudge(0)

	verdict, err := judge.Judge(goldenContent, response(`{"turns": [{"agentResponse": "I have blocked your card"}]}`))
	assert.NoError(t, err)
	assert.Equal(t, models.OutcomeFail, verdict.Result)
	assert.Contains(t, verdict.Detail, "turn 2")
}

func TestJudge_malformed(t *testing.T) {
	judge := NewExpectationJudge(0)

	_, err := judge.Judge(goldenContent, response(`{"answer": "hello"}`))
	assert.ErrorIs(t, err, models.ErrMalformedAgentResponse)

	_, err = judge.Judge(goldenContent, models.AgentResponse{Body: []byte("not json")})
	assert.ErrorIs(t, err, models.ErrExecutionTransportError)
}

func TestJudge_noExpectation(t *testing.T) {
	judge := NewExpectationJudge(0)

	verdict, err := judge.Judge(json.RawMessage(`{}`), response(`{"turns": []}`))
	assert.NoError(t, err)
	assert.Equal(t, models.OutcomeError, verdict.Result)
}
