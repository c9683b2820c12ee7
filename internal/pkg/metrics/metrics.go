package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "folio_http_latency_seconds",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	VisitsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "folio_visits_recorded_total",
		Help: "Visits persisted by the tracking middleware",
	})

	VisitsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_visits_skipped_total",
		Help: "Requests not recorded as visits, by reason",
	}, []string{"reason"})

	VisitInsertErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "folio_visit_insert_errors_total",
		Help: "Visit inserts that failed and were dropped",
	})

	VisitsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "folio_visits_dropped_total",
		Help: "Visits dropped because the write buffer was full",
	})

	VisitsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "folio_visits_swept_total",
		Help: "Visit records deleted by the retention sweeper",
	})

	Translations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_translations_total",
		Help: "Translation attempts per target language and result",
	}, []string{"language", "result"})

	TranslationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "folio_translation_duration_seconds",
		Help:    "Provider call latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
)
