// Package metrics provides Prometheus metrics for the pitwall prediction service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the prediction service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	runBuckets       []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Provider Metrics - upstream data access
	providerRequests        *prometheus.CounterVec
	providerRequestDuration *prometheus.HistogramVec
	providerRetries         *prometheus.CounterVec
	cacheLookups            *prometheus.CounterVec

	// Dataset Metrics - round coverage and training table size
	roundsProcessed *prometheus.CounterVec
	trainingRows    *prometheus.GaugeVec

	// Model Metrics - walk-forward selection outcome
	candidateMAE      *prometheus.GaugeVec
	candidateFailures *prometheus.CounterVec
	modelSelected     *prometheus.CounterVec
	fitDuration       *prometheus.HistogramVec

	// Prediction Metrics
	predictions        *prometheus.CounterVec
	predictionDuration prometheus.Histogram
	storedRuns         prometheus.Gauge

	// Async job Metrics - queue and worker pool
	jobsEnqueued  *prometheus.CounterVec
	queueDepth    prometheus.Gauge
	queueCapacity prometheus.Gauge
	jobsProcessed *prometheus.CounterVec
	jobDuration   prometheus.Histogram
	workersActive prometheus.Gauge
	dedupeHits    prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pitwall",
		subsystem:        "predictor",
		histogramBuckets: prometheus.DefBuckets,
		runBuckets:       []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.providerRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "provider_requests_total",
			Help:        "Upstream provider requests by provider, endpoint and outcome",
			ConstLabels: m.customLabels,
		},
		[]string{"provider", "endpoint", "outcome"},
	)

	m.providerRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "provider_request_duration_seconds",
			Help:        "Upstream provider request latency in seconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: m.customLabels,
		},
		[]string{"provider", "endpoint"},
	)

	m.providerRetries = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "provider_retries_total",
			Help:        "Retries issued against an upstream provider by reason",
			ConstLabels: m.customLabels,
		},
		[]string{"provider", "reason"},
	)

	m.cacheLookups = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "response_cache_lookups_total",
			Help:        "Disk response cache lookups by result (hit, miss, write_error)",
			ConstLabels: m.customLabels,
		},
		[]string{"result"},
	)

	m.roundsProcessed = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "rounds_processed_total",
			Help:        "Historical rounds visited by the dataset builder by outcome",
			ConstLabels: m.customLabels,
		},
		[]string{"mode", "outcome"},
	)

	m.trainingRows = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "training_rows",
			Help:        "Rows in the most recent training table",
			ConstLabels: m.customLabels,
		},
		[]string{"mode"},
	)

	m.candidateMAE = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "candidate_walk_forward_mae",
			Help:        "Mean walk-forward absolute error of each candidate in the last selection",
			ConstLabels: m.customLabels,
		},
		[]string{"model"},
	)

	m.candidateFailures = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "candidate_failures_total",
			Help:        "Candidates disqualified during walk-forward evaluation or final fit",
			ConstLabels: m.customLabels,
		},
		[]string{"model", "stage"},
	)

	m.modelSelected = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "model_selected_total",
			Help:        "Models chosen for prediction (heuristic when no model is trainable)",
			ConstLabels: m.customLabels,
		},
		[]string{"model"},
	)

	m.fitDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "model_fit_duration_seconds",
			Help:        "Time spent fitting a candidate model",
			Buckets:     m.histogramBuckets,
			ConstLabels: m.customLabels,
		},
		[]string{"model"},
	)

	m.predictions = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "predictions_total",
			Help:        "Prediction runs by mode and outcome",
			ConstLabels: m.customLabels,
		},
		[]string{"mode", "outcome"},
	)

	m.predictionDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "prediction_duration_seconds",
		Help:        "End-to-end duration of a prediction run",
		Buckets:     m.runBuckets,
		ConstLabels: m.customLabels,
	})

	m.storedRuns = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "stored_runs",
		Help:        "Prediction runs held by the run store",
		ConstLabels: m.customLabels,
	})

	m.jobsEnqueued = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "jobs_enqueued_total",
			Help:        "Async prediction jobs offered to the queue by outcome",
			ConstLabels: m.customLabels,
		},
		[]string{"outcome"},
	)

	m.queueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "queue_depth",
		Help:        "Jobs waiting in the queue",
		ConstLabels: m.customLabels,
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "queue_capacity",
		Help:        "Maximum number of queued jobs",
		ConstLabels: m.customLabels,
	})

	m.jobsProcessed = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "jobs_processed_total",
			Help:        "Async prediction jobs finished by outcome",
			ConstLabels: m.customLabels,
		},
		[]string{"outcome"},
	)

	m.jobDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "job_wait_seconds",
		Help:        "Time from submission until a worker picked the job up",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	})

	m.workersActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "workers_active",
		Help:        "Workers in the async pool",
		ConstLabels: m.customLabels,
	})

	m.dedupeHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "duplicate_submissions_total",
		Help:        "Async submissions answered with an in-flight run",
		ConstLabels: m.customLabels,
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: m.customLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: m.customLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "errors_by_component_total",
			Help:        "Total number of errors by component",
			ConstLabels: m.customLabels,
		},
		[]string{"component", "error_type"},
	)
}

// RecordProviderRequest counts one upstream request attempt.
func RecordProviderRequest(provider, endpoint, outcome string) {
	globalManager.providerRequests.WithLabelValues(provider, endpoint, outcome).Inc()
}

// RecordProviderLatency records upstream request latency in seconds.
func RecordProviderLatency(provider, endpoint string, seconds float64) {
	globalManager.providerRequestDuration.WithLabelValues(provider, endpoint).Observe(seconds)
}

// RecordProviderRetry counts a retry and its reason (rate_limit, transport, server_error).
func RecordProviderRetry(provider, reason string) {
	globalManager.providerRetries.WithLabelValues(provider, reason).Inc()
}

// RecordCacheHit counts a response cache hit.
func RecordCacheHit() {
	globalManager.cacheLookups.WithLabelValues("hit").Inc()
}

// RecordCacheMiss counts a response cache miss.
func RecordCacheMiss() {
	globalManager.cacheLookups.WithLabelValues("miss").Inc()
}

// RecordCacheWriteError counts a failed cache write.
func RecordCacheWriteError() {
	globalManager.cacheLookups.WithLabelValues("write_error").Inc()
}

// RecordRoundProcessed counts a historical round by outcome (included, skipped, failed).
func RecordRoundProcessed(mode, outcome string) {
	globalManager.roundsProcessed.WithLabelValues(mode, outcome).Inc()
}

// UpdateTrainingRows sets the size of the latest training table.
func UpdateTrainingRows(mode string, rows int) {
	globalManager.trainingRows.WithLabelValues(mode).Set(float64(rows))
}

// UpdateCandidateMAE sets the walk-forward MAE of a candidate.
func UpdateCandidateMAE(model string, mae float64) {
	globalManager.candidateMAE.WithLabelValues(model).Set(mae)
}

// RecordCandidateFailure counts a candidate failure at a stage (walk_forward, final_fit).
func RecordCandidateFailure(model, stage string) {
	globalManager.candidateFailures.WithLabelValues(model, stage).Inc()
}

// RecordModelSelected counts the chosen model.
func RecordModelSelected(model string) {
	globalManager.modelSelected.WithLabelValues(model).Inc()
}

// RecordFitDuration records the time spent fitting a model, in seconds.
func RecordFitDuration(model string, seconds float64) {
	globalManager.fitDuration.WithLabelValues(model).Observe(seconds)
}

// RecordPrediction counts a prediction run by mode and outcome.
func RecordPrediction(mode, outcome string) {
	globalManager.predictions.WithLabelValues(mode, outcome).Inc()
}

// RecordPredictionDuration records the end-to-end duration of a run in seconds.
func RecordPredictionDuration(seconds float64) {
	globalManager.predictionDuration.Observe(seconds)
}

// UpdateStoredRuns sets the number of runs held by the run store.
func UpdateStoredRuns(n int) {
	globalManager.storedRuns.Set(float64(n))
}

// RecordJobEnqueued counts a queue offer by outcome (accepted, full, closed, cancelled).
func RecordJobEnqueued(outcome string) {
	globalManager.jobsEnqueued.WithLabelValues(outcome).Inc()
}

// UpdateQueueDepth sets the number of waiting jobs.
func UpdateQueueDepth(n int) {
	globalManager.queueDepth.Set(float64(n))
}

// UpdateQueueCapacity sets the queue bound.
func UpdateQueueCapacity(n int) {
	globalManager.queueCapacity.Set(float64(n))
}

// RecordJobProcessed counts a finished job by outcome (done, failed).
func RecordJobProcessed(outcome string) {
	globalManager.jobsProcessed.WithLabelValues(outcome).Inc()
}

// RecordJobWait records how long a job sat in the queue, in seconds.
func RecordJobWait(seconds float64) {
	globalManager.jobDuration.Observe(seconds)
}

// UpdateWorkersActive sets the async pool size.
func UpdateWorkersActive(n int) {
	globalManager.workersActive.Set(float64(n))
}

// RecordDuplicateSubmission counts a submission folded into an in-flight run.
func RecordDuplicateSubmission() {
	globalManager.dedupeHits.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in seconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, seconds float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(seconds)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
