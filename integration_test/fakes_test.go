package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/checkmarble/agent-eval-backend/usecases/generation"
)

const (
	requirementsPromptMarker = "[requirements] "
	classifyPromptMarker     = "[classify] "
	analysisPromptMarker     = "[analysis] "
)

// fakeGenerator stands in for the language model. Test cases about refunds expect an answer the
// fake agent never gives.
type fakeGenerator struct{}

func (fakeGenerator) Generate(ctx context.Context, prompt string, opts generation.GenerateOptions) (string, error) {
	switch {
	case strings.HasPrefix(prompt, requirementsPromptMarker):
		return `[
			{"description": "The agent must explain how to order a new card", "type_hint": "conversation-flow"}
		]`, nil
	case strings.HasPrefix(prompt, classifyPromptMarker):
		return "conversation-flow", nil
	case strings.HasPrefix(prompt, analysisPromptMarker):
		return "Refund requests fail because the agent declines them.", nil
	}

	expected := "Your card is now blocked."
	name := "Lost card"
	switch lower := strings.ToLower(prompt); {
	case strings.Contains(lower, "refund"):
		expected = "Your refund is on its way."
		name = "Refund request"
	case strings.Contains(lower, "new card"):
		expected = "You can order a new card from the app."
		name = "New card"
	}

	content, err := json.Marshal(map[string]any{
		"name": name,
		"golden": map[string]any{
			"turns": []map[string]string{{
				"userInput":             "Hello, " + strings.ToLower(name),
				"expectedAgentResponse": expected,
			}},
		},
	})
	if err != nil {
		return "", err
	}
	return "```json\n" + string(content) + "\n```", nil
}

// fakeAgentHandler answers every expected turn of the test case, except for refunds.
func fakeAgentHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /evaluate", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		turns := make([]map[string]string, 0)
		for _, expected := range gjson.GetBytes(body, "content.golden.turns.#.expectedAgentResponse").Array() {
			answer := expected.String()
			if strings.Contains(strings.ToLower(answer), "refund") {
				answer = "I cannot help with that."
			}
			turns = append(turns, map[string]string{"agentResponse": answer})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"turns": turns})
	})
	return mux
}
