// Package metrics exposes Prometheus collectors for the HTTP API and the
// tournament workflow.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tournament_manager"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	matchResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matches",
			Name:      "results_total",
			Help:      "Match results recorded, by kind (result, walkover, reset).",
		},
		[]string{"kind"},
	)

	standingsRecomputations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "standings",
			Name:      "recomputations_total",
			Help:      "Standings recomputations by outcome.",
		},
		[]string{"success"},
	)

	bracketsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "brackets",
			Name:      "generated_total",
			Help:      "Brackets generated, by bracket type.",
		},
		[]string{"bracket_type"},
	)

	publications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "results",
			Name:      "publications_total",
			Help:      "Result snapshot publications by outcome.",
		},
		[]string{"success"},
	)

	resultsCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "results",
			Name:      "cache_lookups_total",
			Help:      "Public results cache lookups by outcome (hit, miss, error).",
		},
		[]string{"outcome"},
	)

	schedulerRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Status scheduler runs by outcome.",
		},
		[]string{"success"},
	)

	schedulerDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "run_duration_seconds",
			Help:      "Duration of status scheduler runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	statusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tournaments",
			Name:      "status_transitions_total",
			Help:      "Automatic and manual tournament status transitions.",
		},
		[]string{"from", "to"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		matchResults,
		standingsRecomputations,
		bracketsGenerated,
		publications,
		resultsCache,
		schedulerRuns,
		schedulerDuration,
		statusTransitions,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

func RecordMatchResult(kind string) {
	matchResults.WithLabelValues(kind).Inc()
}

func RecordStandingsRecompute(success bool) {
	standingsRecomputations.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func RecordBracketGenerated(bracketType string) {
	bracketsGenerated.WithLabelValues(bracketType).Inc()
}

func RecordPublication(success bool) {
	publications.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// RecordCacheLookup records a results cache lookup; outcome is hit, miss or error.
func RecordCacheLookup(outcome string) {
	resultsCache.WithLabelValues(outcome).Inc()
}

func RecordSchedulerRun(duration time.Duration, success bool) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	schedulerRuns.WithLabelValues(strconv.FormatBool(success)).Inc()
	schedulerDuration.Observe(duration.Seconds())
}

func RecordStatusTransition(from, to string) {
	statusTransitions.WithLabelValues(from, to).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working behind the instrumentation.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// canonicalPath replaces numeric path segments with ":id" to bound label cardinality.
func canonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if _, err := strconv.Atoi(seg); err == nil {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}
