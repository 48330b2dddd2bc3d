package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// NewLogger returns a json logger readable by GCP logging when format is "json", and a colored
// human readable logger otherwise. level is one of debug, info, warn or error, and defaults to debug
// in the human readable format and to info in json.
func NewLogger(format, level string) *slog.Logger {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel = slog.LevelDebug
		if format == "json" {
			logLevel = slog.LevelInfo
		}
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:       logLevel,
			ReplaceAttr: GCPLoggerAttributeReplacer,
		}))
	}
	return slog.New(LocalDevHandlerOptions{
		SlogOpts: slog.HandlerOptions{Level: logLevel},
		UseColor: true,
	}.NewLocalDevHandler(os.Stdout))
}

func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger, found := ctx.Value(ContextKeyLogger).(*slog.Logger)
	if !found {
		return slog.Default()
	}
	return logger
}

func StoreLoggerInContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ContextKeyLogger, logger)
}

// LoggerWithAttrs stores in the context a logger carrying the given attributes, typically the ids of
// the run or test case being processed.
func LoggerWithAttrs(ctx context.Context, args ...any) (context.Context, *slog.Logger) {
	logger := LoggerFromContext(ctx).With(args...)
	return StoreLoggerInContext(ctx, logger), logger
}

func StoreLoggerInContextMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctxWithLogger := StoreLoggerInContext(c.Request.Context(), logger)
		c.Request = c.Request.WithContext(ctxWithLogger)
		c.Next()
	}
}

// GCPLoggerAttributeReplacer renames the message and level attributes to the names Cloud Logging
// parses: "message" and "severity".
func GCPLoggerAttributeReplacer(groups []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.MessageKey:
		a.Key = "message"
	case slog.LevelKey:
		a.Key = "severity"
		if level, ok := a.Value.Any().(slog.Level); ok {
			a.Value = slog.StringValue(gcpSeverity(level))
		}
	}
	return a
}

func gcpSeverity(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "DEBUG"
	case level < slog.LevelWarn:
		return "INFO"
	case level < slog.LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

type LocalDevHandler struct {
	opts            LocalDevHandlerOptions
	internalHandler slog.Handler

	mu sync.Mutex
	w  io.Writer
}

type LocalDevHandlerOptions struct {
	SlogOpts slog.HandlerOptions
	UseColor bool
}

func (opts LocalDevHandlerOptions) NewLocalDevHandler(w io.Writer) *LocalDevHandler {
	internalOpts := opts.SlogOpts
	internalOpts.AddSource = false
	internalOpts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == "time" || a.Key == "level" || a.Key == "msg" {
			return slog.Attr{}
		}
		rep := opts.SlogOpts.ReplaceAttr
		if rep != nil {
			return rep(groups, a)
		}
		return a
	}
	return &LocalDevHandler{opts: opts, w: w, internalHandler: slog.NewTextHandler(w, &internalOpts)}
}

func (h *LocalDevHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.internalHandler.Enabled(ctx, level)
}

func (h *LocalDevHandler) Handle(ctx context.Context, r slog.Record) error {
	var buf bytes.Buffer

	buf.WriteString(r.Time.Format(time.RFC3339))
	buf.WriteString(" ")

	level := r.Level.String()
	if h.opts.UseColor {
		level = addColorToLevel(level)
	}
	buf.WriteString(level)
	buf.WriteString(" ")

	buf.WriteString(r.Message)
	buf.WriteString(" ")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	if err != nil {
		return err
	}

	return h.internalHandler.Handle(ctx, r)
}

func (h *LocalDevHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LocalDevHandler{
		opts:            h.opts,
		w:               h.w,
		internalHandler: h.internalHandler.WithAttrs(attrs),
	}
}

func (h *LocalDevHandler) WithGroup(name string) slog.Handler {
	return &LocalDevHandler{
		opts:            h.opts,
		w:               h.w,
		internalHandler: h.internalHandler.WithGroup(name),
	}
}

type Color uint8

const (
	Red     Color = 31
	Yellow  Color = 33
	Blue    Color = 34
	Magenta Color = 35
)

// Adds the coloring to the given string.
func (c Color) Add(s string) string {
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", uint8(c), s)
}

var (
	levelToColor = map[string]Color{
		slog.LevelDebug.String(): Magenta,
		slog.LevelInfo.String():  Blue,
		slog.LevelWarn.String():  Yellow,
		slog.LevelError.String(): Red,
	}
	unknownLevelColor = Red
)

func addColorToLevel(level string) string {
	color, ok := levelToColor[level]
	if !ok {
		color = unknownLevelColor
	}
	return color.Add(level)
}
