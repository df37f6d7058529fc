package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// metricPages counts PageNodes created, partitioned by outcome.
	metricPages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemapper_pages_total",
		Help: "PageNodes created, partitioned by ok/failed outcome.",
	}, []string{"result"})
	// metricRetries counts fetch attempts beyond the first.
	metricRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitemapper_fetch_retries_total",
		Help: "Fetch attempts retried after a transient failure.",
	})
	// metricRobotsDenied counts URLs skipped by robots.txt.
	metricRobotsDenied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitemapper_robots_denied_total",
		Help: "URLs never enqueued because robots.txt disallowed them.",
	})
	// metricEdges counts discovered hyperlinks by classification.
	metricEdges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemapper_edges_total",
		Help: "Discovered hyperlinks, partitioned by internal/external kind.",
	}, []string{"kind"})
	// metricInFlight gauges fetches currently holding a concurrency slot.
	metricInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sitemapper_in_flight_fetches",
		Help: "Fetches currently holding a concurrency slot.",
	})
)
