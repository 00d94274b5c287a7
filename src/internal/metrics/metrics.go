package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the HTTP API, the cache and the
// shopping cart export.

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casrecipes_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "casrecipes_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "casrecipes_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "casrecipes_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	// Cache
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casrecipes_cache_lookups_total",
			Help: "Cache lookups by catalog and result",
		},
		[]string{"catalog", "result"}, // result: "hit", "miss"
	)

	// Domain
	ShoppingCartDownloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casrecipes_shopping_cart_downloads_total",
			Help: "Total number of shopping cart downloads by format",
		},
		[]string{"format"},
	)

	MembershipToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casrecipes_membership_toggles_total",
			Help: "Favorite and shopping cart additions and removals",
		},
		[]string{"list", "action"}, // list: "favorite", "shopping_cart"; action: "add", "remove"
	)
)

// RecordHTTPRequest records one served request
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordCacheLookup records a cache hit or miss for a catalog
func RecordCacheLookup(catalog string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(catalog, result).Inc()
}
