package infra

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

const agentAccessTokenScope = "https://www.googleapis.com/auth/cloud-platform"

// NewAgentHttpClient returns the client used to call the agent endpoint, authenticated with the
// Application Default Credentials when the configuration asks for it.
func NewAgentHttpClient(ctx context.Context, cfg AgentConfig) (*http.Client, error) {
	var transport http.RoundTripper = otelhttp.NewTransport(http.DefaultTransport)

	switch cfg.AuthMode {
	case AgentAuthAccessToken:
		creds, err := google.FindDefaultCredentials(ctx, agentAccessTokenScope)
		if err != nil {
			return nil, errors.Wrap(err, "could not find default google credentials for the agent endpoint")
		}
		transport = &oauth2.Transport{Source: creds.TokenSource, Base: transport}

	case AgentAuthIdToken:
		audience := cfg.AuthAudience
		if audience == "" {
			audience = cfg.EndpointUrl
		}
		source, err := idtoken.NewTokenSource(ctx, audience)
		if err != nil {
			return nil, errors.Wrap(err, "could not create id token source for the agent endpoint")
		}
		transport = &oauth2.Transport{Source: source, Base: transport}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
	}, nil
}
