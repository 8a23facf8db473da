// Package metrics defines the Prometheus instrumentation for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "murrasil_fetch_runs_total",
			Help: "Total number of completed fetch pipeline runs",
		},
	)

	FetchRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "murrasil_fetch_run_duration_seconds",
			Help:    "Fetch pipeline run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	ItemsInsertedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "murrasil_items_inserted_total",
			Help: "Total number of news items inserted, by source",
		},
		[]string{"source"},
	)

	SourceFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "murrasil_source_failures_total",
			Help: "Total number of per-source fetch or parse failures",
		},
		[]string{"source"},
	)

	EnrichmentFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "murrasil_enrichment_failures_total",
			Help: "Total number of failed enrichment calls",
		},
	)

	ArticlesGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "murrasil_articles_generated_total",
			Help: "Total number of article generation attempts, by outcome",
		},
		[]string{"outcome"},
	)
)
