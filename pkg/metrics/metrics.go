package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PipelineMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_messages_total",
			Help: "Total number of messages handled by the pipeline (count)",
		},
		[]string{"status"},
	)

	PipelineReleasedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_released_total",
			Help: "Total number of messages released for redelivery, by failing stage (count)",
		},
		[]string{"stage"},
	)

	PipelineProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_processing_duration_ms",
			Help:    "Per-message processing duration in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"status"},
	)

	PipelinePullErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_pull_errors_total",
			Help: "Total number of failed batch pulls from the message source (count)",
		},
	)

	PipelinePullBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_pull_batch_size",
			Help:    "Number of messages returned per pull (count)",
			Buckets: []float64{0, 1, 2, 5, 10},
		},
	)

	EnrichmentFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_fallbacks_total",
			Help: "Total number of enrichment attempts that produced the fallback result (count)",
		},
		[]string{"reason"},
	)

	EnrichmentModelDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "enrichment_model_duration_ms",
			Help:    "Model call duration in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
	)

	ProducerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "producer_requests_total",
			Help: "Total number of feedback submissions handled by the producer API (count)",
		},
		[]string{"status"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests seen by the rate limiter (count)",
		},
		[]string{"status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failed requests through circuit breaker (count)",
		},
		[]string{"name"},
	)
)

var (
	pipelineOnce       sync.Once
	producerOnce       sync.Once
	circuitBreakerOnce sync.Once
)

func RegisterPipelineMetrics() {
	pipelineOnce.Do(func() {
		prometheus.MustRegister(
			PipelineMessagesTotal,
			PipelineReleasedTotal,
			PipelineProcessingDuration,
			PipelinePullErrorsTotal,
			PipelinePullBatchSize,
			EnrichmentFallbacksTotal,
			EnrichmentModelDuration,
		)
	})
}

func RegisterProducerMetrics() {
	producerOnce.Do(func() {
		prometheus.MustRegister(
			ProducerRequestsTotal,
			RateLimitRequestsTotal,
		)
	})
}

func RegisterCircuitBreakerMetrics() {
	circuitBreakerOnce.Do(func() {
		prometheus.MustRegister(
			CircuitBreakerState,
			CircuitBreakerRequests,
			CircuitBreakerFailures,
		)
	})
}
