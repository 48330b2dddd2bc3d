package infra

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type PgConfig struct {
	ConnectionString    string
	Database            string
	DbConnectWithSocket bool
	Hostname            string
	Password            string
	Port                string
	User                string
	MaxPoolConnections  int
	SslMode             string
}

func (config PgConfig) GetConnectionString() string {
	if config.ConnectionString != "" {
		return config.ConnectionString
	}

	if config.SslMode == "" {
		config.SslMode = "prefer"
	}

	connectionString := fmt.Sprintf("host=%s user=%s password=%s database=%s sslmode=%s",
		config.Hostname, config.User, config.Password, config.Database, config.SslMode)
	if !config.DbConnectWithSocket {
		// Cloud Run connects to the DB through a proxy and a unix socket, so we don't need need to specify the port
		// but we do when running locally
		connectionString = fmt.Sprintf("%s port=%s", connectionString, config.Port)
	}
	return connectionString
}

type TelemetryConfiguration struct {
	Enabled         bool
	ApplicationName string
	ProjectID       string
	// "otlp" (default) or "gcp"
	Exporter    string
	SamplingMap TelemetrySamplingMap
}

type TelemetrySamplingMap struct {
	HttpRoutes map[string]float64 `yaml:"http_routes"`
	SpanNames  map[string]float64 `yaml:"span_names"`
}

// ParseTelemetrySamplingMap reads per-route and per-span sampling rates from a yaml file. An empty
// path gives an empty map, so that only the default rates apply.
func ParseTelemetrySamplingMap(path string) (TelemetrySamplingMap, error) {
	var samplingMap TelemetrySamplingMap
	if path == "" {
		return samplingMap, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return samplingMap, fmt.Errorf("could not read sampling rates file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &samplingMap); err != nil {
		return samplingMap, fmt.Errorf("could not parse sampling rates file: %w", err)
	}
	for name, rate := range samplingMap.SpanNames {
		if rate < 0 || rate > 1 {
			return samplingMap, fmt.Errorf("sampling rate of span %q must be between 0 and 1", name)
		}
	}
	for route, rate := range samplingMap.HttpRoutes {
		if rate < 0 || rate > 1 {
			return samplingMap, fmt.Errorf("sampling rate of route %q must be between 0 and 1", route)
		}
	}
	return samplingMap, nil
}

type AgentAuthMode string

const (
	AgentAuthNone        AgentAuthMode = "none"
	AgentAuthAccessToken AgentAuthMode = "access_token"
	AgentAuthIdToken     AgentAuthMode = "id_token"
)

// AgentConfig describes the conversational agent under evaluation.
type AgentConfig struct {
	EndpointUrl string
	// Upper bound of a single HTTP attempt. The per-case timeout of a run bounds all the attempts.
	RequestTimeout time.Duration
	// Requests per second sent to the agent, across the whole worker process. 0 disables the limiter.
	RateLimit  float64
	MaxRetries int
	AuthMode   AgentAuthMode
	// Audience of the ID token in the id_token mode, defaults to the endpoint url
	AuthAudience string
}

func (c AgentConfig) Validate() error {
	if c.EndpointUrl == "" {
		return fmt.Errorf("the agent endpoint url is required")
	}
	switch c.AuthMode {
	case "", AgentAuthNone, AgentAuthAccessToken, AgentAuthIdToken:
	default:
		return fmt.Errorf("unknown agent auth mode %q", c.AuthMode)
	}
	return nil
}

type GenerationConfig struct {
	Backend    string // "gemini" (default) or "vertex"
	ApiKey     string
	Project    string
	Location   string
	Model      string
	MaxRetries int
	// Optional yaml file with prompt overrides and the agent context
	ConfigFile string
}
