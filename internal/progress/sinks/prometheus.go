package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pagescope/sitemapper/internal/progress"
)

// PrometheusSink exports progress metrics. It owns collectors for fetch
// completions, retries, and skips so they can be registered against any
// registry (the status server exposes the default one).
type PrometheusSink struct {
	fetches    *prometheus.CounterVec
	skips      *prometheus.CounterVec
	retries    prometheus.Counter
	fetchDur   prometheus.Histogram
	queueDepth prometheus.Gauge
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitemapper_progress_fetches_total",
			Help: "Fetch completions partitioned by host and status class.",
		}, []string{"host", "status_class"}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitemapper_progress_skips_total",
			Help: "URLs skipped, partitioned by reason.",
		}, []string{"reason"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sitemapper_progress_retries_total",
			Help: "Fetch retries observed on the progress stream.",
		}),
		fetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitemapper_progress_fetch_duration_seconds",
			Help:    "Fetch duration.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sitemapper_progress_queue_depth",
			Help: "Frontier depth as last observed on the progress stream.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.fetches, s.skips, s.retries, s.fetchDur, s.queueDepth,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageFetchDone:
			s.fetches.WithLabelValues(evt.Host, progress.StatusClass(evt.Status)).Inc()
			s.fetchDur.Observe(evt.Dur.Seconds())
			// Only fetch completions carry a queue depth observation.
			s.queueDepth.Set(float64(evt.QueueDepth))
		case progress.StageFetchRetry:
			s.retries.Inc()
		case progress.StageSkip:
			s.skips.WithLabelValues(evt.Reason).Inc()
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
