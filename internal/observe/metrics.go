// Package observe holds the OpenTelemetry metric instruments recorded by the
// sandbox collaborator. Tests should build Metrics from their own
// MeterProvider with a ManualReader.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/alkime/voicebank"

// Metrics holds the instruments. All fields are safe for concurrent use.
type Metrics struct {
	// Uploads counts donated clips. Attributes: kind (keyword, sentence),
	// result (accepted, rejected).
	Uploads metric.Int64Counter

	// UploadBytes tracks encoded clip sizes. Attribute: kind.
	UploadBytes metric.Int64Histogram

	// Users counts created donor profiles.
	Users metric.Int64Counter

	// SessionEvents counts wizard session transitions. Attribute: event
	// (start, progress, complete, cancel).
	SessionEvents metric.Int64Counter

	// ActiveSessions tracks sessions that are neither completed nor cancelled.
	ActiveSessions metric.Int64UpDownCounter

	// CrossChecks counts reviewed recordings. Attribute: verdict (span, unclear).
	CrossChecks metric.Int64Counter

	// HTTPRequestDuration tracks request latency. Attributes: method, route,
	// status.
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

var sizeBuckets = []float64{
	1 << 10, 4 << 10, 16 << 10, 64 << 10, 256 << 10, 1 << 20,
}

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Uploads, err = m.Int64Counter("voicebank.uploads",
		metric.WithDescription("Donated clips by kind and result."),
	); err != nil {
		return nil, err
	}
	if met.UploadBytes, err = m.Int64Histogram("voicebank.upload.size",
		metric.WithDescription("Size of uploaded encoded clips."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(sizeBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Users, err = m.Int64Counter("voicebank.users",
		metric.WithDescription("Donor profiles created."),
	); err != nil {
		return nil, err
	}
	if met.SessionEvents, err = m.Int64Counter("voicebank.session.events",
		metric.WithDescription("Wizard session transitions by event."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("voicebank.active_sessions",
		metric.WithDescription("Wizard sessions in progress."),
	); err != nil {
		return nil, err
	}
	if met.CrossChecks, err = m.Int64Counter("voicebank.crosschecks",
		metric.WithDescription("Cross-check reviews by verdict."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voicebank.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordUpload counts one upload and its size.
func (m *Metrics) RecordUpload(ctx context.Context, kind string, accepted bool, size int) {
	result := "rejected"
	if accepted {
		result = "accepted"
	}

	m.Uploads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("result", result),
	))
	m.UploadBytes.Record(ctx, int64(size), metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordSessionEvent counts a session transition and keeps ActiveSessions in
// step with it.
func (m *Metrics) RecordSessionEvent(ctx context.Context, event string) {
	m.SessionEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))

	switch event {
	case "start":
		m.ActiveSessions.Add(ctx, 1)
	case "complete", "cancel":
		m.ActiveSessions.Add(ctx, -1)
	}
}

// RecordCrossCheck counts one review.
func (m *Metrics) RecordCrossCheck(ctx context.Context, unclear bool) {
	verdict := "span"
	if unclear {
		verdict = "unclear"
	}
	m.CrossChecks.Add(ctx, 1, metric.WithAttributes(attribute.String("verdict", verdict)))
}

// RecordRequest records one served HTTP request.
func (m *Metrics) RecordRequest(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	))
}
