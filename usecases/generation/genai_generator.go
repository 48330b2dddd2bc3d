package generation

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"
)

// errTransientGeneration marks upstream failures worth retrying.
var errTransientGeneration = errors.New("transient generation failure")

type GenerateOptions struct {
	JSON bool
	// Schema constrains the JSON output when the backend supports it
	Schema *jsonschema.Schema
}

type ContentGenerator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

type GenaiContentGenerator struct {
	client      *genai.Client
	model       string
	temperature *float32
}

func NewGenaiContentGenerator(client *genai.Client, model string, temperature *float32) GenaiContentGenerator {
	return GenaiContentGenerator{
		client:      client,
		model:       model,
		temperature: temperature,
	}
}

func (g GenaiContentGenerator) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	ctx, span := otel.Tracer("generation").Start(ctx, "generation.generate_content")
	defer span.End()
	span.SetAttributes(attribute.String("model", g.model), attribute.Bool("json", opts.JSON))

	config := &genai.GenerateContentConfig{
		Temperature: g.temperature,
	}
	if opts.JSON {
		config.ResponseMIMEType = "application/json"
		if opts.Schema != nil {
			config.ResponseJsonSchema = opts.Schema
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return "", classifyGenaiError(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("model returned an empty response")
	}
	return text, nil
}

func classifyGenaiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 {
			return errors.Mark(errors.Wrapf(err, "genai status %d", apiErr.Code), errTransientGeneration)
		}
		return errors.Wrapf(err, "genai status %d", apiErr.Code)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return errors.Mark(errors.Wrap(err, "genai call failed"), errTransientGeneration)
	}
	return errors.Wrap(err, "genai call failed")
}
