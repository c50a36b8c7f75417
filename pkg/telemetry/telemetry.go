// Package telemetry is the HTTP observability middleware: prometheus
// request counters and latency histograms labeled by route and status,
// plus a lightweight slow-request log line.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"channeld/pkg/logger"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "channeld_http_requests_total",
		Help: "HTTP requests by method, route template and status.",
	}, []string{"method", "route", "status"})
	requestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "channeld_http_request_duration_seconds",
		Help:    "HTTP request latency by route template.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	slowThreshold = 200 * time.Millisecond
)

// SetSlowThreshold sets the latency above which a request gets a warn log.
func SetSlowThreshold(d time.Duration) {
	if d > 0 {
		slowThreshold = d
	}
}

// Middleware records request metrics. Labels use the mux route template
// ("/v1/channels/{id}") rather than the raw path so cardinality stays
// bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)
		dur := time.Since(start)

		route := routeTemplate(r)
		requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(srw.status)).Inc()
		requestSeconds.WithLabelValues(r.Method, route).Observe(dur.Seconds())

		if dur > slowThreshold {
			logger.Warn("slow_request", "method", r.Method, "route", route, "status", srw.status, "duration_ms", dur.Milliseconds())
		}
	})
}

func routeTemplate(r *http.Request) string {
	if cur := mux.CurrentRoute(r); cur != nil {
		if tpl, err := cur.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
