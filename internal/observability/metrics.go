package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resolution sources of an intercepted HTTP request
const (
	SourceFilter     = "filter"
	SourceNextQueue  = "next_queue"
	SourceNextMatch  = "next_match"
	SourceMatch      = "match"
	SourceWildcard   = "wildcard"
	SourceLegacy     = "legacy_filter"
	SourceDefault404 = "default_404"
	SourceRemote     = "remote"
)

var (
	mockResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pmp_http_mock_resolutions_total",
			Help: "Total number of intercepted HTTP requests by resolution source",
		},
		[]string{"source"},
	)

	passthroughTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pmp_http_passthrough_total",
			Help: "Total number of intercepted HTTP requests forwarded to the network",
		},
		[]string{"status"},
	)

	dispatchErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pmp_registry_dispatch_errors_total",
			Help: "Total number of calls to unregistered mockers or unknown methods",
		},
	)

	fixturesLoadedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pmp_http_fixtures_loaded_total",
			Help: "Total number of HTTP fixtures loaded from files",
		},
	)
)

// RecordResolution records which table answered an intercepted request
func RecordResolution(source string) {
	mockResolutionsTotal.WithLabelValues(source).Inc()
}

// RecordPassthrough records a request forwarded to the real network
func RecordPassthrough(status string) {
	passthroughTotal.WithLabelValues(status).Inc()
}

// RecordDispatchError records a failed registry dispatch
func RecordDispatchError() {
	dispatchErrorsTotal.Inc()
}

// RecordFixturesLoaded records fixtures registered from files
func RecordFixturesLoaded(n int) {
	fixturesLoadedTotal.Add(float64(n))
}

// ResolutionCounter exposes the counter for source, for tests
func ResolutionCounter(source string) prometheus.Counter {
	return mockResolutionsTotal.WithLabelValues(source)
}

// DispatchErrorCounter exposes the dispatch error counter, for tests
func DispatchErrorCounter() prometheus.Counter {
	return dispatchErrorsTotal
}

// MetricsHandler returns the Prometheus metrics HTTP handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
