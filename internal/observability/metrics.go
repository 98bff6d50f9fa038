// Package observability exposes crawl progress counters in Prometheus
// exposition format.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PagesFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopcrawl_pages_fetched_total",
			Help: "Listing and detail pages fetched, per site",
		},
		[]string{"site", "role"},
	)

	RecordsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopcrawl_records_written_total",
			Help: "Completed records handed to sinks, per site",
		},
		[]string{"site"},
	)

	RecordsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopcrawl_records_skipped_total",
			Help: "Tiles skipped as unparsable plus detail fetches dropped, per site",
		},
		[]string{"site"},
	)

	TranslationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shopcrawl_translation_failures_total",
			Help: "Description translations that degraded to the source text",
		},
	)
)

// Start registers the counters and serves /metrics on the given port.
func Start(port string) {
	prometheus.MustRegister(PagesFetched, RecordsWritten, RecordsSkipped, TranslationFailures)
	http.Handle("/metrics", promhttp.Handler())
	go http.ListenAndServe(":"+port, nil)
}
