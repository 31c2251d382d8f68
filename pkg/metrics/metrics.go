package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for uploads, the pipeline and search.
type Metrics struct {
	UploadsTotal        *prometheus.CounterVec
	JobsTotal           *prometheus.CounterVec
	JobsInFlight        prometheus.Gauge
	QueueDepth          prometheus.Gauge
	StageDuration       *prometheus.HistogramVec
	StageRetriesTotal   *prometheus.CounterVec
	SweptMeetingsTotal  *prometheus.CounterVec
	SearchRequestsTotal *prometheus.CounterVec
	SearchLatency       prometheus.Histogram
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meeting_uploads_total",
				Help: "Uploads received by outcome",
			},
			[]string{"outcome"},
		),
		JobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meeting_pipeline_jobs_total",
				Help: "Pipeline jobs finished by outcome",
			},
			[]string{"outcome"},
		),
		JobsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "meeting_pipeline_jobs_in_flight",
				Help: "Pipeline jobs currently running",
			},
		),
		QueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "meeting_pipeline_queue_depth",
				Help: "Jobs in the pipeline stream, sampled by the recovery sweep",
			},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meeting_pipeline_stage_seconds",
				Help:    "Duration of each pipeline stage",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600, 1800},
			},
			[]string{"stage", "outcome"},
		),
		StageRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meeting_pipeline_stage_retries_total",
				Help: "Transient failures retried per stage",
			},
			[]string{"stage"},
		),
		SweptMeetingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meeting_pipeline_swept_total",
				Help: "Stale processing meetings handled by the recovery sweep",
			},
			[]string{"action"},
		),
		SearchRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meeting_search_requests_total",
				Help: "Semantic search requests by outcome",
			},
			[]string{"outcome"},
		),
		SearchLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "meeting_search_seconds",
				Help:    "Semantic search latency including query embedding",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		),
	}
}

// ObserveStage records a stage duration. Safe on a nil receiver.
func (m *Metrics) ObserveStage(stage string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage, outcome(err)).Observe(time.Since(started).Seconds())
}

// IncStageRetry counts one retried stage attempt. Safe on a nil receiver.
func (m *Metrics) IncStageRetry(stage string) {
	if m == nil {
		return
	}
	m.StageRetriesTotal.WithLabelValues(stage).Inc()
}

// IncJob counts a finished job. Safe on a nil receiver.
func (m *Metrics) IncJob(result string) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(result).Inc()
}

// JobStarted tracks an in-flight job and returns the function that ends it.
func (m *Metrics) JobStarted() func() {
	if m == nil {
		return func() {}
	}
	m.JobsInFlight.Inc()
	return m.JobsInFlight.Dec
}

// SetQueueDepth records the sampled queue length. Safe on a nil receiver.
func (m *Metrics) SetQueueDepth(n int64) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// IncSwept counts one recovery sweep action. Safe on a nil receiver.
func (m *Metrics) IncSwept(action string) {
	if m == nil {
		return
	}
	m.SweptMeetingsTotal.WithLabelValues(action).Inc()
}

// IncUpload counts one upload. Safe on a nil receiver.
func (m *Metrics) IncUpload(err error) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(outcome(err)).Inc()
}

// ObserveSearch records a search request. Safe on a nil receiver.
func (m *Metrics) ObserveSearch(started time.Time, err error) {
	if m == nil {
		return
	}
	m.SearchRequestsTotal.WithLabelValues(outcome(err)).Inc()
	m.SearchLatency.Observe(time.Since(started).Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
