package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	StoreWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmfeed_store_writes_total",
			Help: "Document writes by operation.",
		},
		[]string{"op"},
	)

	SubscriptionDeliveries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dmfeed_subscription_deliveries_total",
			Help: "Page snapshots delivered to live subscriptions.",
		},
	)

	ActiveSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dmfeed_active_subscriptions",
			Help: "Live subscriptions currently registered.",
		},
	)

	FeedMerges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmfeed_feed_merges_total",
			Help: "Pages merged into a feed window, by source (live or older).",
		},
		[]string{"source"},
	)

	FeedLoadOlderDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dmfeed_feed_load_older_seconds",
			Help:    "Latency of older-page fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)

	FeedErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmfeed_feed_errors_total",
			Help: "Feed failures reported, by operation.",
		},
		[]string{"op"},
	)

	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmfeed_notifications_total",
			Help: "Notify-on-new-message outcomes.",
		},
		[]string{"result"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmfeed_http_requests_total",
			Help: "HTTP requests by method and status code.",
		},
		[]string{"method", "code"},
	)

	BlobBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmfeed_blob_bytes_total",
			Help: "Blob bytes written and deleted.",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(
		StoreWrites,
		SubscriptionDeliveries,
		ActiveSubscriptions,
		FeedMerges,
		FeedLoadOlderDuration,
		FeedErrors,
		Notifications,
		HTTPRequests,
		BlobBytes,
	)
}
