// Package observe holds the OpenTelemetry metric instruments for the
// capture and transcription pipeline. A package-level default instance
// (Default) is provided for convenience; tests should use NewMetrics with
// their own metric.MeterProvider to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/aman-2709/WizScribe"

// Metrics holds all metric instruments. All fields are safe for concurrent
// use; the underlying OTel types handle their own synchronisation.
type Metrics struct {
	// DroppedChunks counts capture chunks discarded on queue overflow.
	// Attribute: source ("mic" or "system").
	DroppedChunks metric.Int64Counter

	// FramesWritten counts interleaved frames written to the session file.
	FramesWritten metric.Int64Counter

	// SourceErrors counts capture-source failures. Attributes: source,
	// fatal ("true" when the whole session went down with it).
	SourceErrors metric.Int64Counter

	// STTDuration tracks per-channel transcription latency. Attribute:
	// speaker.
	STTDuration metric.Float64Histogram

	// ActiveSessions tracks the number of live recording sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// whole-file transcription passes.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised Metrics struct using the given
// metric.MeterProvider. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DroppedChunks, err = m.Int64Counter("wizscribe.capture.dropped_chunks",
		metric.WithDescription("Capture chunks discarded because the writer fell behind."),
	); err != nil {
		return nil, err
	}
	if met.FramesWritten, err = m.Int64Counter("wizscribe.recorder.frames_written",
		metric.WithDescription("Interleaved frames written to the session file."),
	); err != nil {
		return nil, err
	}
	if met.SourceErrors, err = m.Int64Counter("wizscribe.recorder.source_errors",
		metric.WithDescription("Capture source failures by source and fatality."),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("wizscribe.stt.duration",
		metric.WithDescription("Latency of per-channel speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("wizscribe.active_sessions",
		metric.WithDescription("Number of live recording sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// Default returns the package-level Metrics instance, creating it on first
// call from the global meter provider. Panics if instrument creation fails
// (cannot happen with the global provider).
func Default() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordDroppedChunk records one discarded capture chunk.
func (m *Metrics) RecordDroppedChunk(ctx context.Context, source string) {
	m.DroppedChunks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordFramesWritten records a batch of written frames.
func (m *Metrics) RecordFramesWritten(ctx context.Context, n int64) {
	m.FramesWritten.Add(ctx, n)
}

// RecordSourceError records a capture source failure.
func (m *Metrics) RecordSourceError(ctx context.Context, source string, fatal bool) {
	status := "false"
	if fatal {
		status = "true"
	}
	m.SourceErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("fatal", status),
		),
	)
}

// RecordSTT records one per-channel transcription latency sample.
func (m *Metrics) RecordSTT(ctx context.Context, speaker string, d time.Duration) {
	m.STTDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("speaker", speaker)),
	)
}
