package metrics

import "github.com/prometheus/client_golang/prometheus"

var _ prometheus.Collector = (*Metrics)(nil)

const namespace = "metube"

type Metrics struct {
	TransportRequests *prometheus.CounterVec
	TransportErrors   *prometheus.CounterVec
	TransportBytes    prometheus.Counter
	ResolverLookups   prometheus.Counter

	QueuedJobs prometheus.Gauge
	ActiveJobs prometheus.Gauge
	Jobs       *prometheus.CounterVec

	ThumbnailCacheHits   prometheus.Counter
	ThumbnailCacheMisses prometheus.Counter
	ThumbnailEvictions   prometheus.Counter
	CachedThumbnails     prometheus.Gauge

	Searches *prometheus.CounterVec
	Results  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		TransportRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "requests_total",
			Help:      "Total number of requests sent",
		}, []string{"method"}),
		TransportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "errors_total",
			Help:      "Total number of failed requests by failure kind",
		}, []string{"kind"}),
		TransportBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "body_bytes_total",
			Help:      "Total number of response body bytes read",
		}),
		ResolverLookups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "resolver_lookups_total",
			Help:      "Total number of address lookups not served by the cache",
		}),
		QueuedJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workqueue",
			Name:      "queued_jobs",
			Help:      "Number of jobs waiting for a worker",
		}),
		ActiveJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workqueue",
			Name:      "active_jobs",
			Help:      "Number of jobs currently executing",
		}),
		Jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workqueue",
			Name:      "jobs_total",
			Help:      "Total number of jobs enqueued by kind",
		}, []string{"kind"}),
		ThumbnailCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "thumbnail",
			Name:      "cache_hits_total",
			Help:      "Total number of thumbnail lookups served by the cache",
		}),
		ThumbnailCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "thumbnail",
			Name:      "cache_misses_total",
			Help:      "Total number of thumbnail lookups not served by the cache",
		}),
		ThumbnailEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "thumbnail",
			Name:      "evictions_total",
			Help:      "Total number of expired thumbnails released",
		}),
		CachedThumbnails: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "thumbnail",
			Name:      "cached",
			Help:      "Number of decoded thumbnails currently cached",
		}),
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "searches_total",
			Help:      "Total number of finished searches by mode and outcome",
		}, []string{"mode", "outcome"}),
		Results: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "results_total",
			Help:      "Total number of results added to the results list",
		}),
	}
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(c chan<- prometheus.Metric) {
	m.TransportRequests.Collect(c)
	m.TransportErrors.Collect(c)
	m.TransportBytes.Collect(c)
	m.ResolverLookups.Collect(c)
	m.QueuedJobs.Collect(c)
	m.ActiveJobs.Collect(c)
	m.Jobs.Collect(c)
	m.ThumbnailCacheHits.Collect(c)
	m.ThumbnailCacheMisses.Collect(c)
	m.ThumbnailEvictions.Collect(c)
	m.CachedThumbnails.Collect(c)
	m.Searches.Collect(c)
	m.Results.Collect(c)
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(d chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(m, d)
}
