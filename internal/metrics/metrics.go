// Package metrics provides Prometheus instrumentation for the rental API.
//
// Metrics registered here:
//
//	laocinema_http_requests_total            - counter: requests by method/route/status
//	laocinema_http_request_duration_seconds  - histogram: latency by method/route
//	laocinema_identity_resolutions_total     - counter: resolved identity kind
//	laocinema_access_checks_total            - counter: access decisions by result
//	laocinema_video_tokens_issued_total      - counter: tokens minted
//	laocinema_video_token_verifications_total - counter: verify outcomes
//	laocinema_rentals_created_total          - counter: rental creation by target/result
//	laocinema_promo_validations_total        - counter: promo validations by reason
//	laocinema_rate_limited_total             - counter: requests rejected by policy
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ── Counters ──────────────────────────────────────────────────────────────────

// HTTPRequests counts HTTP requests by method, route pattern and status code.
var HTTPRequests = promauto.NewCounterVec(httpRequestsOpts, []string{"method", "route", "status"})

// IdentityResolutions counts resolved identities by kind (user, anonymous, none).
var IdentityResolutions = promauto.NewCounterVec(identityOpts, []string{"kind"})

// AccessChecks counts access decisions. result is "direct", "pack" or "denied".
var AccessChecks = promauto.NewCounterVec(accessOpts, []string{"result"})

// VideoTokensIssued counts minted video tokens.
var VideoTokensIssued = promauto.NewCounter(tokensIssuedOpts)

// VideoTokenVerifications counts verify outcomes ("valid", "invalid").
var VideoTokenVerifications = promauto.NewCounterVec(tokenVerifyOpts, []string{"result"})

// RentalsCreated counts rental creation attempts by target kind and result
// ("created", "conflict", "error").
var RentalsCreated = promauto.NewCounterVec(rentalsOpts, []string{"target", "result"})

// PromoValidations counts promo validations by reason ("valid" on success).
var PromoValidations = promauto.NewCounterVec(promoOpts, []string{"reason"})

// RateLimited counts requests rejected by a rate-limit policy.
var RateLimited = promauto.NewCounterVec(rateLimitedOpts, []string{"policy"})

// ── Histograms ────────────────────────────────────────────────────────────────

// HTTPDuration tracks HTTP request latency.
var HTTPDuration = promauto.NewHistogramVec(httpDurationOpts, []string{"method", "route"})

var (
	httpRequestsOpts = prometheus.CounterOpts{
		Name: "laocinema_http_requests_total",
		Help: "Total HTTP requests handled.",
	}
	identityOpts = prometheus.CounterOpts{
		Name: "laocinema_identity_resolutions_total",
		Help: "Resolved caller identities by kind.",
	}
	accessOpts = prometheus.CounterOpts{
		Name: "laocinema_access_checks_total",
		Help: "Access decisions by result.",
	}
	tokensIssuedOpts = prometheus.CounterOpts{
		Name: "laocinema_video_tokens_issued_total",
		Help: "Video tokens minted.",
	}
	tokenVerifyOpts = prometheus.CounterOpts{
		Name: "laocinema_video_token_verifications_total",
		Help: "Video token verifications by result.",
	}
	rentalsOpts = prometheus.CounterOpts{
		Name: "laocinema_rentals_created_total",
		Help: "Rental creation attempts by target kind and result.",
	}
	promoOpts = prometheus.CounterOpts{
		Name: "laocinema_promo_validations_total",
		Help: "Promo code validations by outcome.",
	}
	rateLimitedOpts = prometheus.CounterOpts{
		Name: "laocinema_rate_limited_total",
		Help: "Requests rejected by rate limiting, by policy.",
	}
	httpDurationOpts = prometheus.HistogramOpts{
		Name:    "laocinema_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}
)

// Handler returns the Prometheus HTTP handler. Mount at GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency. Routes are labelled with the
// chi route pattern ("/rentals/access/{movieId}"), never the raw path, to
// keep ids out of label values.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := routePattern(r)
		HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// Init registers a fresh copy of every metric with reg. Production code uses
// the promauto globals; tests pass prometheus.NewRegistry().
func Init(reg prometheus.Registerer) {
	reg.MustRegister(
		prometheus.NewCounterVec(httpRequestsOpts, []string{"method", "route", "status"}),
		prometheus.NewCounterVec(identityOpts, []string{"kind"}),
		prometheus.NewCounterVec(accessOpts, []string{"result"}),
		prometheus.NewCounter(tokensIssuedOpts),
		prometheus.NewCounterVec(tokenVerifyOpts, []string{"result"}),
		prometheus.NewCounterVec(rentalsOpts, []string{"target", "result"}),
		prometheus.NewCounterVec(promoOpts, []string{"reason"}),
		prometheus.NewCounterVec(rateLimitedOpts, []string{"policy"}),
		prometheus.NewHistogramVec(httpDurationOpts, []string{"method", "route"}),
	)
}
