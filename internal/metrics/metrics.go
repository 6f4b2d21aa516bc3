package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedirectsTotal counts redirect resolutions by outcome
	RedirectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imagefork_redirect_requests_total",
		Help: "Total number of redirect requests by outcome",
	}, []string{"outcome"}) // "redirect", "safe", "no_texture", "error"

	// CoherencyTokenActions counts coherency cache results by action
	CoherencyTokenActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imagefork_redirect_coherency_token",
		Help: "Coherency token cache resolutions by action",
	}, []string{"action"}) // "hit", "update", "update_discarded", "none_found"

	// RequestDuration tracks redirect resolution latency
	RequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "imagefork_redirect_request_duration_seconds",
		Help:    "Redirect resolution duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// PosterStoreErrors counts failed poster store reads
	PosterStoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagefork_poster_store_errors_total",
		Help: "Total number of failed poster store reads",
	})

	// PortalMutationsTotal counts poster portal writes by kind
	PortalMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imagefork_portal_mutations_total",
		Help: "Total number of poster portal mutations",
	}, []string{"kind"}) // "create", "stop", "resume", "image"
)

// RecordCoherencyAction records the result of one coherency cache resolve
func RecordCoherencyAction(action string) {
	CoherencyTokenActions.WithLabelValues(action).Inc()
}

// RecordRedirectOutcome records the terminal outcome of a redirect request
func RecordRedirectOutcome(outcome string) {
	RedirectsTotal.WithLabelValues(outcome).Inc()
}
