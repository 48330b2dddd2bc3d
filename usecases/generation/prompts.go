package generation

import (
	"encoding/json"
	"strings"
	"text/template"

	"github.com/cockroachdb/errors"
)

const conversationFlowTemplate = `You write evaluation test cases for a conversational agent.

Write one test case that checks a deterministic conversation flow. Answer with a single JSON object:
{
  "name": short name of the test case,
  "description": what the test case checks,
  "golden": {
    "turns": [
      {"userInput": what the user says, "expectedAgentResponse": what the agent must answer}
    ]
  }
}
Cover the happy path of the requirement in several turns, and keep the context between turns.
{{if .AgentContext}}
Agent context:
{{.AgentContext}}
{{end}}
Requirement:
{{.Input}}
{{if .Previous}}
Previous version of the test case:
{{.Previous}}
{{end}}{{if .Feedback}}
Reviewer feedback, address every point:
{{.Feedback}}
{{end}}`

const transactionalTemplate = `You write evaluation test cases for a conversational agent.

Write one scenario test case that checks a transaction performed by the agent. Answer with a single
JSON object:
{
  "name": short name of the test case,
  "description": what the test case checks,
  "scenario": {
    "task": what the simulated user wants to achieve,
    "userFacts": facts the simulated user knows,
    "rubrics": 3 to 5 criteria on accuracy, completeness, tone and error handling,
    "userGoalBehavior": one of "SATISFIED", "REJECTED", "IGNORED",
    "maxTurns": between 5 and 15
  }
}
{{if .AgentContext}}
Agent context:
{{.AgentContext}}
{{end}}
Requirement:
{{.Input}}
{{if .Previous}}
Previous version of the test case:
{{.Previous}}
{{end}}{{if .Feedback}}
Reviewer feedback, address every point:
{{.Feedback}}
{{end}}`

const genericTemplate = `You write evaluation test cases for a conversational agent.

Write one test case for the requirement below. Answer with a single JSON object with at least a
"name" and a "description" field, and the inputs and expectations needed to run the test.
{{if .AgentContext}}
Agent context:
{{.AgentContext}}
{{end}}
Requirement:
{{.Input}}
{{if .Previous}}
Previous version of the test case:
{{.Previous}}
{{end}}{{if .Feedback}}
Reviewer feedback, address every point:
{{.Feedback}}
{{end}}`

const requirementsTemplate = `List the individual test requirements found in the document below.

Answer with a JSON array. Each element is an object with:
- "description": what to test, self-contained
- "type_hint": "conversation-flow" for deterministic conversations, "transactional" for tasks performed
  by the agent, or null when it cannot be told

Answer with an empty array if the document has no testable requirement.

Document:
{{.Input}}`

const classifyTemplate = `Classify this test requirement.

"conversation-flow": deterministic conversation with exact expected answers
"transactional": a task performed by the agent, scored on its behavior

Requirement: {{.Input}}

Answer with only "conversation-flow" or "transactional".`

const analysisTemplate = `You analyze the results of an evaluation run of a conversational agent.

Run summary:
{{.Previous}}

Results:
{{.Input}}
{{if .Feedback}}
Answer this question: {{.Feedback}}
{{else}}
Give:
1. a summary of the pass and fail rates
2. the recurring failure patterns
3. the likely root causes
4. recommended fixes
{{end}}`

type promptData struct {
	Input        string
	AgentContext string
	Previous     string
	Feedback     string
}

func renderPrompt(tmpl string, data promptData) (string, error) {
	t, err := template.New("prompt").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return "", errors.Wrap(err, "invalid prompt template")
	}

	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", errors.Wrap(err, "could not render prompt")
	}
	return sb.String(), nil
}

func agentContextString(agentContext map[string]any) string {
	if len(agentContext) == 0 {
		return ""
	}
	out, err := json.MarshalIndent(agentContext, "", "  ")
	if err != nil {
		return ""
	}
	return string(out)
}
