package metrics

import (
	"testing"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/Layr-Labs/pricefeed-sidecar/internal/logger"
	"github.com/Layr-Labs/pricefeed-sidecar/internal/metrics/dogstatsd"
	"github.com/Layr-Labs/pricefeed-sidecar/internal/metrics/metricsTypes"
	pm "github.com/Layr-Labs/pricefeed-sidecar/internal/metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type recordingClient struct {
	incrs   map[string]float64
	gauges  map[string]float64
	timings map[string]time.Duration
	labels  map[string][]metricsTypes.MetricsLabel
}

func newRecordingClient() *recordingClient {
	return &recordingClient{
		incrs:   make(map[string]float64),
		gauges:  make(map[string]float64),
		timings: make(map[string]time.Duration),
		labels:  make(map[string][]metricsTypes.MetricsLabel),
	}
}

func (r *recordingClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	r.incrs[name] += value
	r.labels[name] = labels
	return nil
}

func (r *recordingClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	r.gauges[name] = value
	r.labels[name] = labels
	return nil
}

func (r *recordingClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	r.timings[name] = value
	r.labels[name] = labels
	return nil
}

func Test_MetricsSink(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	t.Run("Fans out to every client with default labels", func(t *testing.T) {
		rc := newRecordingClient()
		sink, err := NewMetricsSink(&MetricsSinkConfig{
			DefaultLabels: []metricsTypes.MetricsLabel{{Name: "service", Value: "test"}},
		}, []metricsTypes.IMetricsClient{rc})
		assert.Nil(t, err)

		assert.Nil(t, sink.Incr(metricsTypes.Metric_Incr_UpdateObserved, []metricsTypes.MetricsLabel{
			{Name: metricsTypes.Label_Event, Value: "vaa"},
		}, 1))
		assert.Nil(t, sink.Gauge(metricsTypes.Metric_Gauge_LatestCompletedSlot, 42, nil))
		assert.Nil(t, sink.Timing(metricsTypes.Metric_Timing_BuildMessageStatesDuration, time.Millisecond*3, nil))

		assert.Equal(t, float64(1), rc.incrs[metricsTypes.Metric_Incr_UpdateObserved])
		assert.Len(t, rc.labels[metricsTypes.Metric_Incr_UpdateObserved], 2)
		assert.Equal(t, float64(42), rc.gauges[metricsTypes.Metric_Gauge_LatestCompletedSlot])
		assert.Equal(t, time.Millisecond*3, rc.timings[metricsTypes.Metric_Timing_BuildMessageStatesDuration])
	})
	t.Run("Noop sink never fails", func(t *testing.T) {
		sink := NewNoopMetricsSink()
		assert.Nil(t, sink.Incr("anything", nil, 1))
		assert.Nil(t, sink.Gauge("anything", 1, nil))
	})
	t.Run("Prometheus client ignores undeclared labels", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		client, err := pm.NewPrometheusMetricsClient(&pm.PrometheusMetricsConfig{
			Metrics:    metricsTypes.MetricTypes,
			Registerer: registry,
		}, l)
		assert.Nil(t, err)

		sink, _ := NewMetricsSink(&MetricsSinkConfig{
			DefaultLabels: []metricsTypes.MetricsLabel{{Name: "service", Value: "test"}},
		}, []metricsTypes.IMetricsClient{client})

		assert.Nil(t, sink.Incr(metricsTypes.Metric_Incr_UpdateObserved, []metricsTypes.MetricsLabel{
			{Name: metricsTypes.Label_Event, Value: "vaa"},
		}, 2))
		assert.Nil(t, sink.Gauge(metricsTypes.Metric_Gauge_LatestObservedSlot, 10, nil))

		count, err := testutil.GatherAndCount(registry, "aggregate_update_observed")
		assert.Nil(t, err)
		assert.Equal(t, 1, count)
	})
	t.Run("Dogstatsd client wraps a statsd client", func(t *testing.T) {
		dd := dogstatsd.NewDogStatsdMetricsClientWithStatsd(&statsd.NoOpClient{}, 0, l)
		sink, _ := NewMetricsSink(&MetricsSinkConfig{}, []metricsTypes.IMetricsClient{dd})
		assert.Nil(t, sink.Incr(metricsTypes.Metric_Incr_UpdateCompleted, nil, 1))
		assert.Nil(t, sink.Timing(metricsTypes.Metric_Timing_BuildMessageStatesDuration, time.Second, nil))
	})
}
