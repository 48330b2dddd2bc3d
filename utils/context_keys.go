package utils

type ContextKey int

const (
	ContextKeyLogger ContextKey = iota
	ContextKeyOpenTelemetryTracer
	ContextKeyActor
)
