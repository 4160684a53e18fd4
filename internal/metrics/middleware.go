package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const httpSubsystem = "http"

// unmatchedRoute labels requests no route matched, keeping path cardinality bounded.
const unmatchedRoute = "unmatched"

var (
	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: httpSubsystem,
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route",
		// a search spans several chat completions
		Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
	}, []string{"method", "path", "status"})

	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: httpSubsystem,
		Name:      "requests_total",
		Help:      "HTTP requests by route and status",
	}, []string{"method", "path", "status"})

	httpRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: httpSubsystem,
		Name:      "requests_in_flight",
		Help:      "HTTP requests being served",
	})
)

var httpRegistered bool

// RegisterHTTPMetrics registers the collectors fed by Middleware.
func RegisterHTTPMetrics() {
	if httpRegistered {
		return
	}
	prometheus.MustRegister(httpRequestDuration, httpRequestsTotal, httpRequestsInFlight)
	httpRegistered = true
}

// Middleware records latency, count and concurrency labelled by the chi route pattern.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := unmatchedRoute
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = routeLabel(rctx.RoutePattern())
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			labels := []string{r.Method, route, strconv.Itoa(status)}
			httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			httpRequestsTotal.WithLabelValues(labels...).Inc()
		})
	}
}

func routeLabel(pattern string) string {
	if pattern == "" {
		return unmatchedRoute
	}
	return pattern
}
