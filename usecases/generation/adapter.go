package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/avast/retry-go/v4"
	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/utils"
)

const (
	DEFAULT_MAX_RETRIES = 3

	documentGenerationConcurrency = 3
	maxAnalyzedOutcomes           = 100
	maxNameLength                 = 80
)

// Adapter turns free text into structured test case content through a ContentGenerator.
type Adapter struct {
	generator  ContentGenerator
	prompts    PromptConfig
	maxRetries int
	retryDelay time.Duration
}

func NewAdapter(generator ContentGenerator, prompts PromptConfig, maxRetries int) Adapter {
	if maxRetries < 0 {
		maxRetries = DEFAULT_MAX_RETRIES
	}
	return Adapter{
		generator:  generator,
		prompts:    prompts,
		maxRetries: maxRetries,
		retryDelay: 500 * time.Millisecond,
	}
}

// GenerateFromDescription generates one test case. On failure, the returned value still carries the
// resolved type and the prompt, and the error wraps ErrGenerationFailed.
func (a Adapter) GenerateFromDescription(ctx context.Context, input models.GenerateFromDescriptionInput) (
	models.GeneratedTestCase, error,
) {
	typ := input.TypeHint
	if typ == "" || typ == models.TestCaseTypeUnspecified {
		typ = a.Classify(ctx, input.Description)
	}

	prompt, err := renderPrompt(a.prompts.templateFor(typ), promptData{
		Input:        input.Description,
		AgentContext: agentContextString(a.prompts.AgentContext),
	})
	if err != nil {
		return models.GeneratedTestCase{Type: typ}, err
	}

	return a.generateTestCase(ctx, "description", typ, prompt, input.Description)
}

// GenerateFromDocument extracts the requirements of a document and generates one test case per
// requirement. Only a failure of the extraction step is returned as an error; per requirement
// failures are reported in the items.
func (a Adapter) GenerateFromDocument(ctx context.Context, input models.GenerateFromDocumentInput) (
	[]models.DocumentGenerationItem, error,
) {
	requirements, err := a.ExtractRequirements(ctx, input.ExtractedText)
	if err != nil {
		return nil, err
	}

	items := make([]models.DocumentGenerationItem, len(requirements))
	group := errgroup.Group{}
	group.SetLimit(documentGenerationConcurrency)
	for i, requirement := range requirements {
		group.Go(func() error {
			generated, err := a.GenerateFromDescription(ctx, models.GenerateFromDescriptionInput{
				SuiteId:     input.SuiteId,
				Description: requirement.Description,
				TypeHint:    requirement.TypeHint,
			})
			items[i] = models.DocumentGenerationItem{
				Requirement: requirement,
				Generated:   generated,
				Err:         err,
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (a Adapter) ExtractRequirements(ctx context.Context, text string) ([]models.Requirement, error) {
	prompt, err := renderPrompt(a.prompts.RequirementsPrompt, promptData{Input: text})
	if err != nil {
		return nil, err
	}

	raw, err := a.call(ctx, "requirements", prompt, GenerateOptions{JSON: true, Schema: requirementsSchema})
	if err != nil {
		return nil, err
	}

	parsed := gjson.Parse(extractJSON(raw))
	if !parsed.IsArray() {
		return nil, errors.Wrapf(models.ErrGenerationFailed,
			"requirements extraction did not return a json array: %s", truncateText(raw, 200))
	}

	requirements := make([]models.Requirement, 0)
	for _, r := range parsed.Array() {
		description := strings.TrimSpace(r.Get("description").String())
		if description == "" {
			continue
		}
		requirements = append(requirements, models.Requirement{
			Description: description,
			TypeHint:    models.TestCaseTypeFrom(r.Get("type_hint").String()),
		})
	}
	return requirements, nil
}

// Regenerate produces a new content for a test case, given the reviewer feedback on the previous one.
func (a Adapter) Regenerate(ctx context.Context, input models.RegenerationInput) (models.GeneratedTestCase, error) {
	prompt, err := renderPrompt(a.prompts.templateFor(input.Type), promptData{
		Input:        input.OriginalInput,
		AgentContext: agentContextString(a.prompts.AgentContext),
		Previous:     string(input.PreviousJSON),
		Feedback:     input.Feedback,
	})
	if err != nil {
		return models.GeneratedTestCase{Type: input.Type}, err
	}

	return a.generateTestCase(ctx, "regeneration", input.Type, prompt, input.OriginalInput)
}

// Classify never fails: any problem falls back to the unspecified type.
func (a Adapter) Classify(ctx context.Context, text string) models.TestCaseType {
	logger := utils.LoggerFromContext(ctx)

	prompt, err := renderPrompt(a.prompts.ClassifyPrompt, promptData{Input: text})
	if err != nil {
		logger.WarnContext(ctx, "could not render classification prompt", "error", err.Error())
		return models.TestCaseTypeUnspecified
	}

	raw, err := a.call(ctx, "classification", prompt, GenerateOptions{})
	if err != nil {
		logger.WarnContext(ctx, "test case classification failed, falling back to unspecified",
			"error", err.Error())
		return models.TestCaseTypeUnspecified
	}

	answer := strings.ToLower(raw)
	switch {
	case strings.Contains(answer, string(models.TestCaseTypeConversationFlow)), strings.Contains(answer, "golden"):
		return models.TestCaseTypeConversationFlow
	case strings.Contains(answer, string(models.TestCaseTypeTransactional)), strings.Contains(answer, "scenario"):
		return models.TestCaseTypeTransactional
	}
	return models.TestCaseTypeUnspecified
}

type analyzedOutcome struct {
	TestCaseId string `json:"test_case_id"`
	Result     string `json:"result"`
	Detail     string `json:"detail,omitempty"`
	LatencyMs  int64  `json:"latency_ms"`
}

// AnalyzeRun asks the model for a written analysis of a finished run, or for the answer to a
// specific question about it.
func (a Adapter) AnalyzeRun(ctx context.Context, run models.EvaluationRun, outcomes []models.TestCaseOutcome,
	question string,
) (string, error) {
	summary, err := json.MarshalIndent(map[string]any{
		"evaluation_type": run.EvaluationType,
		"state":           run.State,
		"total":           run.TotalCount,
		"passed":          run.PassedCount,
		"failed":          run.FailedCount,
		"errored":         run.ErrorCount,
		"pass_rate":       run.PassRate,
		"latency":         run.LatencyReport,
	}, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "could not marshal run summary")
	}

	// failures first, they carry the information
	analyzed := make([]analyzedOutcome, 0, len(outcomes))
	for _, pass := range []bool{false, true} {
		for _, o := range outcomes {
			if (o.Result == models.OutcomePass) != pass || len(analyzed) >= maxAnalyzedOutcomes {
				continue
			}
			analyzed = append(analyzed, analyzedOutcome{
				TestCaseId: o.TestCaseId.String(),
				Result:     string(o.Result),
				Detail:     o.Detail,
				LatencyMs:  o.Latency.Milliseconds(),
			})
		}
	}
	results, err := json.MarshalIndent(analyzed, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "could not marshal run outcomes")
	}

	prompt, err := renderPrompt(a.prompts.AnalysisPrompt, promptData{
		Input:    string(results),
		Previous: string(summary),
		Feedback: strings.TrimSpace(question),
	})
	if err != nil {
		return "", err
	}

	return a.call(ctx, "analysis", prompt, GenerateOptions{})
}

func (a Adapter) generateTestCase(ctx context.Context, source string, typ models.TestCaseType, prompt, input string) (
	models.GeneratedTestCase, error,
) {
	generated := models.GeneratedTestCase{
		Type:   typ,
		Prompt: prompt,
	}

	raw, err := a.call(ctx, source, prompt, GenerateOptions{JSON: true})
	if err != nil {
		return generated, err
	}
	generated.RawResponse = raw

	content := extractJSON(raw)
	parsed := gjson.Parse(content)
	if !parsed.IsObject() {
		return generated, errors.Wrapf(models.ErrGenerationFailed,
			"model output is not a json object: %s", truncateText(raw, 200))
	}

	generated.Content = json.RawMessage(content)
	generated.Name = firstString(parsed, "name", "displayName", "display_name", "title")
	if generated.Name == "" {
		generated.Name = truncateText(normalizeText(input), maxNameLength)
	}
	generated.Description = firstString(parsed, "description")
	if generated.Description == "" {
		generated.Description = strings.TrimSpace(input)
	}
	return generated, nil
}

// call runs the generator with retries on transient failures. Any final failure wraps
// ErrGenerationFailed, except the cancellation of ctx.
func (a Adapter) call(ctx context.Context, source, prompt string, opts GenerateOptions) (string, error) {
	logger := utils.LoggerFromContext(ctx)
	start := time.Now()

	raw, err := retry.DoWithData(
		func() (string, error) {
			return a.generator.Generate(ctx, prompt, opts)
		},
		retry.Context(ctx),
		retry.Attempts(uint(a.maxRetries+1)),
		retry.LastErrorOnly(true),
		retry.Delay(a.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errTransientGeneration)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.DebugContext(ctx, "retrying generation call",
				"source", source, "attempt", n+1, "error", err.Error())
		}),
	)
	utils.MetricGenerationLatency.WithLabelValues(source).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return "", errors.Wrap(ctx.Err(), "generation interrupted")
		}
		return "", errors.Wrapf(models.ErrGenerationFailed, "%s: %s", source, err.Error())
	}
	return raw, nil
}

// extractJSON strips the markdown code fences models like to wrap their json output in.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if newline := strings.IndexByte(s, '\n'); newline >= 0 {
		s = s[newline+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func firstString(parsed gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := strings.TrimSpace(parsed.Get(path).String()); v != "" {
			return v
		}
	}
	return ""
}

func truncateText(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return fmt.Sprintf("%s...", string(runes[:n]))
}
