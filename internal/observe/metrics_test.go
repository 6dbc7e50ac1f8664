package observe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumFor[N int64 | float64](t *testing.T, m *metricdata.Metrics, attrs ...attribute.KeyValue) N {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[N])
	require.True(t, ok, "metric %s is not a sum", m.Name)

	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestRecordUpload(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordUpload(ctx, "keyword", true, 2048)
	m.RecordUpload(ctx, "keyword", true, 2048)
	m.RecordUpload(ctx, "sentence", false, 10000)

	rm := collect(t, reader)
	uploads := findMetric(rm, "voicebank.uploads")
	require.NotNil(t, uploads)

	assert.Equal(t, int64(2), sumFor[int64](t, uploads,
		attribute.String("kind", "keyword"), attribute.String("result", "accepted")))
	assert.Equal(t, int64(1), sumFor[int64](t, uploads,
		attribute.String("kind", "sentence"), attribute.String("result", "rejected")))

	size := findMetric(rm, "voicebank.upload.size")
	require.NotNil(t, size)
	hist, ok := size.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestRecordSessionEvent_TracksActive(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	for _, ev := range []string{"start", "start", "progress", "complete"} {
		m.RecordSessionEvent(ctx, ev)
	}

	rm := collect(t, reader)
	active := findMetric(rm, "voicebank.active_sessions")
	require.NotNil(t, active)
	assert.Equal(t, int64(1), sumFor[int64](t, active))

	events := findMetric(rm, "voicebank.session.events")
	require.NotNil(t, events)
	assert.Equal(t, int64(2), sumFor[int64](t, events, attribute.String("event", "start")))
}

func TestRecordRequestAndCrossCheck(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRequest(ctx, "GET", "/keyword", 200, 3*time.Millisecond)
	m.RecordCrossCheck(ctx, true)
	m.RecordCrossCheck(ctx, false)

	rm := collect(t, reader)
	require.NotNil(t, findMetric(rm, "voicebank.http.request.duration"))

	cc := findMetric(rm, "voicebank.crosschecks")
	require.NotNil(t, cc)
	assert.Equal(t, int64(1), sumFor[int64](t, cc, attribute.String("verdict", "unclear")))
	assert.Equal(t, int64(1), sumFor[int64](t, cc, attribute.String("verdict", "span")))
}
