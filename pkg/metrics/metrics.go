// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TierPicks counts recommendations contributed by each waterfall tier.
	TierPicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "similarmusic",
		Name:      "tier_picks_total",
		Help:      "Tracks added to recommendation lists, by waterfall tier.",
	}, []string{"tier"})

	// ProviderFailures counts provider calls demoted to empty results.
	ProviderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "similarmusic",
		Name:      "provider_failures_total",
		Help:      "Provider calls that failed and were treated as empty.",
	}, []string{"provider", "op", "kind"})

	// Requests counts FindSimilarMusic calls by the path that produced the
	// answer: primary, secondary or empty.
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "similarmusic",
		Name:      "requests_total",
		Help:      "Recommendation requests by resolution path.",
	}, []string{"path"})

	// RequestDuration observes the end-to-end latency of a recommendation.
	RequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "similarmusic",
		Name:      "request_duration_seconds",
		Help:      "Time spent producing one recommendation result.",
		Buckets:   []float64{.1, .25, .5, 1, 2, 4, 8, 12},
	})
)
