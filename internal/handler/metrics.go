package handler

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	webhookEventsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fulfillment_service",
			Subsystem: "stripe_webhook",
			Name:      "events_processed_total",
			Help:      "Total number of successfully processed webhook events",
		},
		[]string{"type"},
	)

	webhookEventsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fulfillment_service",
			Subsystem: "stripe_webhook",
			Name:      "events_failed_total",
			Help:      "Total number of webhook events that failed processing",
		},
		[]string{"type"},
	)

	webhookSignatureErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fulfillment_service",
			Subsystem: "stripe_webhook",
			Name:      "signature_errors_total",
			Help:      "Total number of webhook deliveries rejected for a bad signature",
		},
	)

	webhookProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fulfillment_service",
			Subsystem: "stripe_webhook",
			Name:      "processing_duration_seconds",
			Help:      "Histogram of webhook event processing durations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(
		webhookEventsProcessed,
		webhookEventsFailed,
		webhookSignatureErrors,
		webhookProcessingDuration,
	)
}
