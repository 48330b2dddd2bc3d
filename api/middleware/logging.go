package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/checkmarble/agent-eval-backend/utils"
)

type config struct {
	logger     *slog.Logger
	ignorePath map[string]struct{}
	onlyErrors bool

	defaultLevel     slog.Level
	clientErrorLevel slog.Level
	serverErrorLevel slog.Level
}

type LoggerOption func(*config)

func WithIgnorePath(paths ...string) LoggerOption {
	return func(c *config) {
		for _, path := range paths {
			c.ignorePath[path] = struct{}{}
		}
	}
}

// WithRequestLoggingLevel reads the REQUEST_LOGGING_LEVEL setting: "all" logs every request, "errors"
// only the requests answered with a 4xx or 5xx status.
func WithRequestLoggingLevel(level string) LoggerOption {
	return func(c *config) {
		c.onlyErrors = level == "errors"
	}
}

func NewLogging(logger *slog.Logger, options ...LoggerOption) gin.HandlerFunc {
	l := &config{
		logger:           logger,
		ignorePath:       make(map[string]struct{}),
		defaultLevel:     slog.LevelInfo,
		clientErrorLevel: slog.LevelWarn,
		serverErrorLevel: slog.LevelError,
	}
	for _, option := range options {
		option(l)
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := l.ignorePath[path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		status := c.Writer.Status()

		level := l.defaultLevel
		switch {
		case status >= http.StatusInternalServerError:
			level = l.serverErrorLevel
		case status >= http.StatusBadRequest:
			level = l.clientErrorLevel
		case l.onlyErrors:
			return
		}

		dataLength := max(c.Writer.Size(), 0)
		attributes := []slog.Attr{
			slog.Int("status", status),
			slog.Int64("latency", time.Since(start).Milliseconds()),
			slog.String("client_ip", c.ClientIP()),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("route", c.FullPath()),
			slog.Int("data_length", dataLength),
			slog.String("actor", utils.ActorFromContext(c.Request.Context())),
		}
		if c.Errors != nil {
			attributes = append(attributes, slog.String("error", c.Errors.String()))
		}
		l.logger.LogAttrs(c.Request.Context(), level,
			fmt.Sprintf("%s %s", c.Request.Method, path), attributes...)
	}
}
