package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_UpdateObserved    = "aggregate.update.observed"
	Metric_Incr_UpdateDuplicate   = "aggregate.update.duplicate"
	Metric_Incr_UpdateCompleted   = "aggregate.update.completed"
	Metric_Incr_UpdateFailed      = "aggregate.update.failed"
	Metric_Incr_BenchmarksRequest = "benchmarks.request"

	Metric_Gauge_LatestCompletedSlot = "aggregate.slot.latest_completed"
	Metric_Gauge_LatestObservedSlot  = "aggregate.slot.latest_observed"
	Metric_Gauge_Ready               = "aggregate.ready"

	Metric_Timing_BuildMessageStatesDuration = "aggregate.build_message_states.duration"
)

// Label names used by the metrics above.
var (
	Label_Event    = "event"
	Label_Ordering = "ordering"
	Label_Status   = "status"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name:   Metric_Incr_UpdateObserved,
			Labels: []string{Label_Event},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_UpdateDuplicate,
			Labels: []string{Label_Event},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_UpdateCompleted,
			Labels: []string{Label_Ordering},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_UpdateFailed,
			Labels: []string{Label_Event},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_BenchmarksRequest,
			Labels: []string{Label_Status},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name:   Metric_Gauge_LatestCompletedSlot,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_LatestObservedSlot,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_Ready,
			Labels: []string{},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name:   Metric_Timing_BuildMessageStatesDuration,
			Labels: []string{},
		},
	},
}
