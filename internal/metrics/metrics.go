package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geoshock_requests_classified_total",
		Help: "Requests classified, by label and confidence level.",
	}, []string{"label", "confidence"})

	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geoshock_verifications_total",
		Help: "High-trust identity verifications, by identity and outcome.",
	}, []string{"identity", "outcome"})

	VerificationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "geoshock_verification_seconds",
		Help:    "Wall time spent in reverse/forward DNS verification.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
	})

	SinkWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geoshock_sink_writes_total",
		Help: "Record writes per sink and outcome.",
	}, []string{"sink", "outcome"})

	IngestDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geoshock_ingest_dropped_total",
		Help: "Observations dropped because the ingest queue was full.",
	})

	SessionsBuilt = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geoshock_sessions_built_total",
		Help: "Sessions reconstructed for reports, by behavior pattern.",
	}, []string{"pattern"})
)
