// Package observe provides application-wide observability primitives for
// voxsign: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxsign metrics.
const meterName = "github.com/voxsign/voxsign"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// RecognizeDuration tracks speech-recognition latency per utterance.
	RecognizeDuration metric.Float64Histogram

	// TranslateDuration tracks text-to-gloss translation latency.
	TranslateDuration metric.Float64Histogram

	// RenderDuration tracks gloss-to-pose rendering latency.
	RenderDuration metric.Float64Histogram

	// --- Counters ---

	// Utterances counts utterance boundaries submitted to the pipeline.
	Utterances metric.Int64Counter

	// DroppedUtterances counts utterances displaced from the single-flight
	// queue by a newer boundary.
	DroppedUtterances metric.Int64Counter

	// ClassifierFailures counts per-frame voice-activity oracle rejections.
	ClassifierFailures metric.Int64Counter

	// PipelineErrors counts failed pipeline runs. Use with attribute:
	//   attribute.String("stage", ...)
	PipelineErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live streaming sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for speech-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RecognizeDuration, err = m.Float64Histogram("voxsign.recognize.duration",
		metric.WithDescription("Latency of speech recognition per utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranslateDuration, err = m.Float64Histogram("voxsign.translate.duration",
		metric.WithDescription("Latency of text-to-gloss translation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RenderDuration, err = m.Float64Histogram("voxsign.render.duration",
		metric.WithDescription("Latency of gloss-to-pose rendering."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Utterances, err = m.Int64Counter("voxsign.utterances",
		metric.WithDescription("Total utterance boundaries submitted to the pipeline."),
	); err != nil {
		return nil, err
	}
	if met.DroppedUtterances, err = m.Int64Counter("voxsign.utterances.dropped",
		metric.WithDescription("Total utterances displaced from the single-flight queue."),
	); err != nil {
		return nil, err
	}
	if met.ClassifierFailures, err = m.Int64Counter("voxsign.classifier.failures",
		metric.WithDescription("Total per-frame voice-activity oracle rejections."),
	); err != nil {
		return nil, err
	}
	if met.PipelineErrors, err = m.Int64Counter("voxsign.pipeline.errors",
		metric.WithDescription("Total failed pipeline runs by stage."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxsign.active_sessions",
		metric.WithDescription("Number of live streaming sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxsign.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordStage records one pipeline stage execution: its latency into the
// stage's histogram and, when err is non-nil, a pipeline error increment.
// stage is one of "recognize", "translate", "render".
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration, err error) {
	var h metric.Float64Histogram
	switch stage {
	case "recognize":
		h = m.RecognizeDuration
	case "translate":
		h = m.TranslateDuration
	case "render":
		h = m.RenderDuration
	}
	if h != nil {
		h.Record(ctx, d.Seconds())
	}
	if err != nil {
		m.PipelineErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("stage", stage)))
	}
}
