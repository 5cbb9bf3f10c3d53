package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tripkit/image-search/internal/logger"
)

var (
	// RequestsTotal counts the number of HTTP requests received
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_search_requests_total",
			Help: "The total number of HTTP requests processed by the API",
		},
		[]string{"method", "status", "endpoint"},
	)

	// RequestDuration measures the duration of HTTP requests
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_search_request_duration_seconds",
			Help:    "The duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// ProviderRequestsTotal counts provider search attempts by outcome
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_search_provider_requests_total",
			Help: "The total number of image provider search attempts",
		},
		[]string{"provider", "outcome"},
	)

	// ProviderRequestDuration measures the duration of provider search attempts
	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_search_provider_request_duration_seconds",
			Help:    "The duration of image provider search attempts in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// CacheLookupsTotal counts cache lookups by result
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_search_cache_lookups_total",
			Help: "The total number of image cache lookups",
		},
		[]string{"result"},
	)

	// ImagesPersistedTotal counts image persistence attempts by status
	ImagesPersistedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_search_images_persisted_total",
			Help: "The total number of images persisted to blob storage",
		},
		[]string{"status"},
	)

	// ResponsesTotal counts search responses by provenance
	ResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_search_responses_total",
			Help: "The total number of search responses by source",
		},
		[]string{"source"},
	)
)

// RecordProviderAttempt records the outcome and duration of one provider attempt
func RecordProviderAttempt(provider, outcome string, startTime time.Time) {
	ProviderRequestsTotal.WithLabelValues(provider, outcome).Inc()
	ProviderRequestDuration.WithLabelValues(provider).Observe(time.Since(startTime).Seconds())
}

// RecordCacheLookup records whether a cache lookup produced any entries
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordPersist records the status of one image persistence attempt
func RecordPersist(status string) {
	ImagesPersistedTotal.WithLabelValues(status).Inc()
}

// RecordResponse records the provenance of one search response
func RecordResponse(source string) {
	ResponsesTotal.WithLabelValues(source).Inc()
}

// Init initializes metrics collection
func Init() {
	logger := logger.GetLogger("metrics")
	logger.Info().Msg("Metrics collection initialized")
}
