// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	ActiveDeliveries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snapbot_active_deliveries",
		Help: "Number of deliveries currently in progress",
	})
	TrackedUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snapbot_rate_limiter_tracked_users",
		Help: "Number of users with rate limiter state",
	})
)

// Counters
var (
	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapbot_deliveries_total",
		Help: "Total delivery requests by outcome",
	}, []string{"outcome"})
	ItemsExtractedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapbot_items_extracted_total",
		Help: "Media items returned by the extractor, by strategy",
	}, []string{"source"})
	ItemsRelayedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapbot_items_relayed_total",
		Help: "Media items relayed to users by result",
	}, []string{"result"})
	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapbot_rate_limited_total",
		Help: "Requests rejected by the per-user rate limiter",
	})
	BytesDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapbot_bytes_downloaded_total",
		Help: "Bytes of media written to the temp directory",
	})
	OversizeAborts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapbot_oversize_aborts_total",
		Help: "Downloads aborted for exceeding the file size limit",
	})
	HandlerPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapbot_handler_panics_total",
		Help: "Panics recovered at the update handling boundary",
	})
)

// Histograms
var (
	DeliveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapbot_delivery_duration_seconds",
		Help:    "End-to-end delivery duration",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
	})
)
