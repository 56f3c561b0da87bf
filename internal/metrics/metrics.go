package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RefreshTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cratewatch_refresh_ticks_total",
		Help: "Total number of refresh ticks performed.",
	})
	RefreshPhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cratewatch_refresh_phase_duration_seconds",
		Help:    "Duration of refresh tick phases (fetch, ingest, advisories).",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})
	RefreshErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cratewatch_refresh_errors_total",
		Help: "Total number of refresh phase failures.",
	}, []string{"phase"})
	IngestBlobsRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cratewatch_ingest_blobs_read_total",
		Help: "Total number of index blobs read during ingestion.",
	})
	IngestPackagesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cratewatch_ingest_packages_written_total",
		Help: "Total number of package version lists written during ingestion.",
	})
	AnalyzeCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cratewatch_analyze_cache_hits_total",
		Help: "Total number of repository analyses served from cache.",
	})
	AnalyzeCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cratewatch_analyze_cache_misses_total",
		Help: "Total number of repository analyses computed.",
	})
	AnalyzeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cratewatch_analyze_duration_seconds",
		Help:    "Duration of repository analyses.",
		Buckets: prometheus.DefBuckets,
	})
	AdvisoryCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cratewatch_advisories_loaded",
		Help: "Number of advisories in the current snapshot.",
	})
	BadgeRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cratewatch_badge_requests_in_flight",
		Help: "Number of badge requests currently being served.",
	})
)
