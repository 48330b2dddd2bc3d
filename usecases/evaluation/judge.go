package evaluation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"

	"github.com/checkmarble/agent-eval-backend/models"
)

const DEFAULT_SIMILARITY_THRESHOLD = 0.8

// ExpectationJudge decides whether the agent answered a test case as expected. An explicit boolean
// "passed" field in the answer is authoritative. Otherwise every expected agent turn of the golden
// conversation must be found in the matching turn of the answer.
type ExpectationJudge struct {
	similarityThreshold float64
	levenshtein         *metrics.Levenshtein
}

func NewExpectationJudge(similarityThreshold float64) ExpectationJudge {
	if similarityThreshold <= 0 || similarityThreshold > 1 {
		similarityThreshold = DEFAULT_SIMILARITY_THRESHOLD
	}
	return ExpectationJudge{
		similarityThreshold: similarityThreshold,
		levenshtein:         metrics.NewLevenshtein(),
	}
}

func (j ExpectationJudge) Judge(content json.RawMessage, response models.AgentResponse) (models.Verdict, error) {
	if !gjson.ValidBytes(response.Body) {
		return models.Verdict{}, errors.Wrap(models.ErrMalformedAgentResponse, "agent response is not valid json")
	}

	passed := gjson.GetBytes(response.Body, "passed")
	if passed.IsBool() {
		detail := firstString(response.Body, "failureReason", "failure_reason", "reason")
		if passed.Bool() {
			return models.Verdict{Result: models.OutcomePass, Detail: detail}, nil
		}
		if detail == "" {
			detail = "the agent reported a failure"
		}
		return models.Verdict{Result: models.OutcomeFail, Detail: detail}, nil
	}

	actualTurns := gjson.GetBytes(response.Body, "turns")
	if !actualTurns.IsArray() {
		return models.Verdict{}, errors.Wrap(models.ErrMalformedAgentResponse,
			`agent response has neither a boolean "passed" field nor a "turns" array`)
	}

	expected := gjson.GetBytes(content, "golden.turns.#.expectedAgentResponse").Array()
	actual := actualTurns.Get("#.agentResponse").Array()
	if len(expected) == 0 {
		return models.Verdict{
			Result: models.OutcomeError,
			Detail: "the test case has no expected agent response to compare with",
		}, nil
	}

	for i, exp := range expected {
		if i >= len(actual) {
			return models.Verdict{
				Result: models.OutcomeFail,
				Detail: fmt.Sprintf("turn %d: the agent gave no response", i+1),
			}, nil
		}
		if !j.matches(exp.String(), actual[i].String()) {
			return models.Verdict{
				Result: models.OutcomeFail,
				Detail: fmt.Sprintf("turn %d: expected %q, got %q", i+1, exp.String(), actual[i].String()),
			}, nil
		}
	}

	return models.Verdict{Result: models.OutcomePass}, nil
}

func (j ExpectationJudge) matches(expected, actual string) bool {
	e := j.normalize(expected)
	a := j.normalize(actual)
	if e == "" {
		return true
	}
	if strings.Contains(a, e) {
		return true
	}
	return strutil.Similarity(e, a, j.levenshtein) >= j.similarityThreshold
}

// a Caser is stateful, the judge is shared by the pool
func (j ExpectationJudge) normalize(s string) string {
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}

func firstString(body []byte, paths ...string) string {
	for _, p := range paths {
		if v := gjson.GetBytes(body, p); v.Type == gjson.String {
			return v.String()
		}
	}
	return ""
}
