package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	NotificationsReceived prometheus.Counter
	DecodeFailures        prometheus.Counter
	FetchFailures         prometheus.Counter
	MailsProcessed        prometheus.Counter
	EventsCreated         prometheus.Counter
	EventFailures         prometheus.Counter
	ExtractionRejects     prometheus.Counter
	ProcessingTime        prometheus.Histogram
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		NotificationsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gmail_scheduler_notifications_received",
			Help: "Total number of push notifications received",
		}),
		DecodeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gmail_scheduler_decode_failures",
			Help: "Total number of notification payloads that failed every decode strategy",
		}),
		FetchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gmail_scheduler_fetch_failures",
			Help: "Total number of notification cycles dropped after retry exhaustion",
		}),
		MailsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gmail_scheduler_mails_processed",
			Help: "Total number of mail items run through the extraction engine",
		}),
		EventsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gmail_scheduler_events_created",
			Help: "Total number of calendar events created",
		}),
		EventFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gmail_scheduler_event_failures",
			Help: "Total number of calendar inserts that failed",
		}),
		ExtractionRejects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gmail_scheduler_extraction_rejects",
			Help: "Total number of mail items rejected by the extraction engine",
		}),
		ProcessingTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gmail_scheduler_processing_duration_seconds",
			Help:    "Time spent handling one push notification",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
