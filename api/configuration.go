package api

import (
	"net/http"
	"time"
)

type Configuration struct {
	Env                 string
	AppName             string
	AppVersion          string
	Port                string
	RequestLoggingLevel string
	// Browser origins allowed by CORS, on top of the local dev servers in development
	CorsAllowedOrigins []string
	DefaultTimeout     time.Duration
	// Generation calls the model and can retry, so it gets a longer budget
	GenerationTimeout time.Duration
	MaxUploadSize     int64
	EnablePrometheus  bool
	// Mounted under /debug/pprof when set
	ProfilingHandler http.Handler
}
