package keeper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
)

const metricNamespace = "mergekeeper"

const (
	pipelinesMetricName       = "pipelines_total"
	runningPipelinesMetric    = "running_pipelines"
	pollsMetricName           = "mergeable_state_polls_total"
	mergeAttemptsMetricName   = "merge_attempts_total"
	processedEventsMetricName = "processed_github_events_total"
)

const (
	stateLabel          = "state"
	mergeableStateLabel = "mergeable_state"
	resultLabel         = "result"
)

type mergeResultLabelVal string

const (
	mergeResultLabelSuccessVal mergeResultLabelVal = "success"
	mergeResultLabelFailureVal mergeResultLabelVal = "failure"
)

type metricCollector struct {
	logger           *zap.Logger
	pipelines        *prometheus.CounterVec
	runningPipelines prometheus.Gauge
	polls            *prometheus.CounterVec
	mergeAttempts    *prometheus.CounterVec
	processedEvents  prometheus.Counter
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		pipelines: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      pipelinesMetricName,
				Help:      "count of finished pipelines by terminal state",
			},
			[]string{stateLabel},
		),
		runningPipelines: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricNamespace,
				Name:      runningPipelinesMetric,
				Help:      "count of currently running pipelines",
			},
		),
		polls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      pollsMetricName,
				Help:      "count of pull request polls by observed mergeable state",
			},
			[]string{mergeableStateLabel},
		),
		mergeAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      mergeAttemptsMetricName,
				Help:      "count of merge api calls",
			},
			[]string{resultLabel},
		),
		processedEvents: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      processedEventsMetricName,
				Help:      "count of processed github webhook events",
			},
		),
	}
}

func (m *metricCollector) logGetMetricFailed(metricName string, err error) {
	m.logger.Warn(
		"could not record metric",
		zap.String("metric", metricName),
		logfields.Event("recording_metric_failed"),
		zap.Error(err),
	)
}

func (m *metricCollector) PipelineFinished(state State) {
	cnt, err := m.pipelines.GetMetricWith(prometheus.Labels{stateLabel: string(state)})
	if err != nil {
		m.logGetMetricFailed(pipelinesMetricName, err)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) PipelineStarted() {
	m.runningPipelines.Inc()
}

func (m *metricCollector) PipelineStopped() {
	m.runningPipelines.Dec()
}

func (m *metricCollector) PollsInc(mergeableState string) {
	if mergeableState == "" {
		mergeableState = "none"
	}

	cnt, err := m.polls.GetMetricWith(prometheus.Labels{mergeableStateLabel: mergeableState})
	if err != nil {
		m.logGetMetricFailed(pollsMetricName, err)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) MergeAttemptsInc(result mergeResultLabelVal) {
	cnt, err := m.mergeAttempts.GetMetricWith(prometheus.Labels{resultLabel: string(result)})
	if err != nil {
		m.logGetMetricFailed(mergeAttemptsMetricName, err)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) ProcessedEventsInc() {
	m.processedEvents.Inc()
}
