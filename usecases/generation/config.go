package generation

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/checkmarble/agent-eval-backend/models"
)

// PromptConfig can be overridden with a yaml file. Empty fields keep the built-in prompts.
//
//	agent_context:
//	  name: card-support
//	  tools: [block_card, order_card]
//	templates:
//	  conversation-flow: "..."
//	requirements_prompt: "..."
type PromptConfig struct {
	AgentContext       map[string]any                 `yaml:"agent_context"`
	Templates          map[models.TestCaseType]string `yaml:"templates"`
	GenericTemplate    string                         `yaml:"generic_template"`
	RequirementsPrompt string                         `yaml:"requirements_prompt"`
	ClassifyPrompt     string                         `yaml:"classify_prompt"`
	AnalysisPrompt     string                         `yaml:"analysis_prompt"`
	Temperature        *float32                       `yaml:"temperature"`
}

func DefaultPromptConfig() PromptConfig {
	return PromptConfig{
		Templates: map[models.TestCaseType]string{
			models.TestCaseTypeConversationFlow: conversationFlowTemplate,
			models.TestCaseTypeTransactional:    transactionalTemplate,
		},
		GenericTemplate:    genericTemplate,
		RequirementsPrompt: requirementsTemplate,
		ClassifyPrompt:     classifyTemplate,
		AnalysisPrompt:     analysisTemplate,
	}
}

// LoadPromptConfig reads the overrides from path, if any.
func LoadPromptConfig(path string) (PromptConfig, error) {
	cfg := DefaultPromptConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return PromptConfig{}, errors.Wrapf(err, "could not read generation config file %s", path)
	}

	var overrides PromptConfig
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return PromptConfig{}, errors.Wrapf(err, "could not parse generation config file %s", path)
	}

	cfg.AgentContext = overrides.AgentContext
	cfg.Temperature = overrides.Temperature
	for typ, tmpl := range overrides.Templates {
		cfg.Templates[typ] = tmpl
	}
	if overrides.GenericTemplate != "" {
		cfg.GenericTemplate = overrides.GenericTemplate
	}
	if overrides.RequirementsPrompt != "" {
		cfg.RequirementsPrompt = overrides.RequirementsPrompt
	}
	if overrides.ClassifyPrompt != "" {
		cfg.ClassifyPrompt = overrides.ClassifyPrompt
	}
	if overrides.AnalysisPrompt != "" {
		cfg.AnalysisPrompt = overrides.AnalysisPrompt
	}
	return cfg, nil
}

// template of a test case type, unknown types use the generic one
func (c PromptConfig) templateFor(typ models.TestCaseType) string {
	if tmpl, ok := c.Templates[typ]; ok && tmpl != "" {
		return tmpl
	}
	return c.GenericTemplate
}
