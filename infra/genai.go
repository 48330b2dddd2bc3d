package infra

import (
	"context"

	"github.com/cockroachdb/errors"
	"google.golang.org/genai"
)

const DEFAULT_GENERATION_MODEL = "gemini-2.5-flash"

func NewGenaiClient(ctx context.Context, cfg GenerationConfig) (*genai.Client, error) {
	clientConfig := &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  cfg.ApiKey,
	}
	if cfg.Backend == "vertex" {
		project, err := ResolveGcpProjectId(ctx, cfg.Project)
		if err != nil {
			return nil, err
		}
		if project == "" {
			return nil, errors.New("the vertex generation backend needs a google cloud project")
		}
		clientConfig = &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  project,
			Location: cfg.Location,
		}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, errors.Wrap(err, "could not create genai client")
	}
	return client, nil
}
