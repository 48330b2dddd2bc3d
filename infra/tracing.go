package infra

import (
	"cmp"
	"context"
	"encoding/binary"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

	texporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	gcppropagator "github.com/GoogleCloudPlatform/opentelemetry-operations-go/propagator"
	"google.golang.org/api/option"

	"go.opentelemetry.io/contrib/detectors/gcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type TelemetryRessources struct {
	TracerProvider    trace.TracerProvider
	Tracer            trace.Tracer
	TextMapPropagator propagation.TextMapPropagator
}

func NoopTelemetry() TelemetryRessources {
	return TelemetryRessources{
		TracerProvider:    noop.NewTracerProvider(),
		Tracer:            &noop.Tracer{},
		TextMapPropagator: nil,
	}
}

func InitTelemetry(configuration TelemetryConfiguration, apiVersion string) (TelemetryRessources, error) {
	if !configuration.Enabled {
		return NoopTelemetry(), nil
	}

	var exporter sdktrace.SpanExporter

	switch configuration.Exporter {
	case "gcp":
		gcpExporter, err := texporter.New(
			texporter.WithProjectID(configuration.ProjectID),
			texporter.WithTraceClientOptions([]option.ClientOption{option.WithTelemetryDisabled()}),
		)
		if err != nil {
			return TelemetryRessources{}, errors.Wrap(err, "could not create the cloud trace exporter")
		}

		exporter = gcpExporter

	default: // "otlp"
		otlpExporter, err := otlptracegrpc.New(context.Background())
		if err != nil {
			return TelemetryRessources{}, errors.Wrap(err, "could not create the otlp exporter")
		}

		exporter = otlpExporter
	}

	res, err := resource.New(context.Background(),
		resource.WithDetectors(gcp.NewDetector()),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(configuration.ApplicationName),
			semconv.ServiceVersion(apiVersion),
		),
	)
	if err != nil {
		return TelemetryRessources{}, errors.Wrap(err, "could not build the telemetry resource")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(NewEvalSampler(configuration.SamplingMap)),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	tracer := tp.Tracer(configuration.ApplicationName)

	propagators := propagation.NewCompositeTextMapPropagator(
		gcppropagator.CloudTraceFormatPropagator{},
		propagation.TraceContext{},
		propagation.Baggage{},
	)

	otel.SetTextMapPropagator(propagators)

	return TelemetryRessources{
		TracerProvider:    tp,
		Tracer:            tracer,
		TextMapPropagator: propagators,
	}, nil
}

const DEFAULT_SAMPLING_RATE = 0.3

var (
	defaultSpanNamesSampling = map[string]float64{
		"stale_run_reaper": 0.05,
		// one span per executed case, the run span is enough most of the time
		"evaluation.execute_case": 0.1,
		"pool.acquire":            0.0,
	}

	defaultRoutePrefixSampling = map[string]float64{
		"/liveness":          0.0,
		"/metrics":           0.0,
		"/dashboard/summary": 0.05,
	}
)

type routeRate struct {
	prefix string
	rate   float64
}

// EvalSampler picks a sampling ratio per route prefix, per query or per span name, and keeps the
// decision of the parent span. Configured rates take precedence over the defaults, and the longest
// matching route prefix wins.
type EvalSampler struct {
	routes    []routeRate
	spanNames map[string]float64
}

func NewEvalSampler(samplingMap TelemetrySamplingMap) EvalSampler {
	routes := maps.Clone(defaultRoutePrefixSampling)
	maps.Copy(routes, samplingMap.HttpRoutes)
	spanNames := maps.Clone(defaultSpanNamesSampling)
	maps.Copy(spanNames, samplingMap.SpanNames)

	sampler := EvalSampler{spanNames: spanNames}
	for prefix, rate := range routes {
		sampler.routes = append(sampler.routes, routeRate{prefix: prefix, rate: rate})
	}
	slices.SortFunc(sampler.routes, func(a, b routeRate) int {
		return cmp.Compare(len(b.prefix), len(a.prefix))
	})
	return sampler
}

func (EvalSampler) Description() string {
	return "agent-eval-sampler"
}

func (s EvalSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	psc := trace.SpanContextFromContext(p.ParentContext)

	// Children of a dropped span are dropped, root spans have no trace id in their parent context.
	if psc.HasTraceID() && !psc.IsSampled() {
		return sdktrace.NeverSample().ShouldSample(p)
	}

	decision := sdktrace.Drop
	traceId := binary.BigEndian.Uint64(p.TraceID[:8])
	if traceId < uint64(s.ratio(p, psc.IsSampled())*float64(math.MaxUint64)) {
		decision = sdktrace.RecordAndSample
	}

	return sdktrace.SamplingResult{
		Decision:   decision,
		Attributes: p.Attributes,
		Tracestate: psc.TraceState(),
	}
}

func (s EvalSampler) ratio(p sdktrace.SamplingParameters, parentSampled bool) float64 {
	for _, attr := range p.Attributes {
		switch attr.Key {
		case semconv.HTTPRouteKey:
			return s.routeRatio(attr.Value.AsString())
		case semconv.DBQueryTextKey:
			query := attr.Value.AsString()
			if strings.HasPrefix(p.Name, "prepare ") || strings.HasPrefix(query, "SELECT 1") ||
				strings.HasPrefix(query, "SELECT to_regclass") {
				return 0.0
			}
			if parentSampled {
				return 1.0
			}
			return DEFAULT_SAMPLING_RATE
		}
	}

	if rate, ok := s.spanNames[p.Name]; ok {
		return rate
	}
	return 1.0
}

func (s EvalSampler) routeRatio(route string) float64 {
	for _, r := range s.routes {
		if strings.HasPrefix(route, r.prefix) {
			return r.rate
		}
	}
	return DEFAULT_SAMPLING_RATE
}
