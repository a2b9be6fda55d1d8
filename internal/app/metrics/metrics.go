// Package metrics exposes the Prometheus registry and collectors for the
// control plane's HTTP surface and actor/worker domain events.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	core "github.com/tacc-cloud/abaco/internal/app/core/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "abaco",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "abaco",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "abaco",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	// actorExecutionsTotal counts executions by status, one per
	// RecordExecution call.
	actorExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "abaco",
			Subsystem: "actors",
			Name:      "executions_total",
			Help:      "Total number of executions recorded, by status.",
		},
		[]string{"status"},
	)

	// workerCommandsTotal counts worker commands by kind and whether
	// stop_existing was set, one per RecordWorkerCommand call.
	workerCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "abaco",
			Subsystem: "workers",
			Name:      "commands_total",
			Help:      "Total number of worker commands published, by kind.",
		},
		[]string{"kind", "stop_existing"},
	)

	// actorMessageQueueDepth holds the approximate per-actor inbox depth
	// last passed to RecordMessageQueueDepth.
	actorMessageQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "abaco",
			Subsystem: "actors",
			Name:      "message_queue_depth",
			Help:      "Last observed approximate message queue depth for an actor.",
		},
		[]string{"actor_db_id"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		actorExecutionsTotal,
		workerCommandsTotal,
		actorMessageQueueDepth,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
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

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordExecution records one execution reaching a terminal (or
// intermediate) status.
func RecordExecution(status string) {
	if status == "" {
		status = "unknown"
	}
	actorExecutionsTotal.WithLabelValues(status).Inc()
}

// RecordWorkerCommand records one CommandChannel publication.
func RecordWorkerCommand(kind string, stopExisting bool) {
	if kind == "" {
		kind = "unknown"
	}
	workerCommandsTotal.WithLabelValues(kind, strconv.FormatBool(stopExisting)).Inc()
}

// RecordMessageQueueDepth records the last-observed approximate queue depth
// for one actor.
func RecordMessageQueueDepth(actorDBID string, depth int) {
	if actorDBID == "" {
		actorDBID = "unknown"
	}
	actorMessageQueueDepth.WithLabelValues(actorDBID).Set(float64(depth))
}

type observationCollector struct {
	gauge *prometheus.GaugeVec
	hist  *prometheus.HistogramVec
}

// ObservationHooks creates core observation hooks backed by Prometheus
// metrics, for instrumenting background services (e.g. the worker sweep)
// the same way the HTTP path is instrumented. Safe to call more than once
// with the same (namespace, subsystem, name): a repeat call reuses the
// collectors already registered instead of panicking.
func ObservationHooks(namespace, subsystem, name string) core.ObservationHooks {
	gauge := registerGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name + "_in_flight",
		Help:      "Current operations in flight for " + subsystem,
	}, []string{"resource"})
	hist := registerHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name + "_duration_seconds",
		Help:      "Duration of operations for " + subsystem,
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"resource", "status"})
	collector := observationCollector{gauge: gauge, hist: hist}
	return core.ObservationHooks{
		OnStart: func(_ context.Context, meta map[string]string) {
			collector.gauge.WithLabelValues(metaLabel(meta)).Inc()
		},
		OnComplete: func(_ context.Context, meta map[string]string, err error, duration time.Duration) {
			label := metaLabel(meta)
			collector.gauge.WithLabelValues(label).Dec()
			status := "success"
			if err != nil {
				status = "error"
			}
			collector.hist.WithLabelValues(label, status).Observe(duration.Seconds())
		},
	}
}

func registerGaugeVec(opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	gauge := prometheus.NewGaugeVec(opts, labels)
	if err := Registry.Register(gauge); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(*prometheus.GaugeVec)
		}
		panic(err)
	}
	return gauge
}

func registerHistogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	hist := prometheus.NewHistogramVec(opts, labels)
	if err := Registry.Register(hist); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(*prometheus.HistogramVec)
		}
		panic(err)
	}
	return hist
}

func metaLabel(meta map[string]string) string {
	if meta == nil {
		return "unknown"
	}
	if id, ok := meta["actor_db_id"]; ok && id != "" {
		return id
	}
	return "unknown"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses a request path into a low-cardinality label for
// the duration/requests histograms: /actors/v2 and /actors/v2/{id} become
// /actors/v2, and /actors/v2/{id}/... becomes /actors/v2/:id/..., never the
// raw id.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 || parts[0] != "actors" || parts[1] != "v2" {
		return "/" + parts[0]
	}
	if len(parts) < 4 {
		return "/actors/v2"
	}
	out := []string{"actors", "v2", ":id"}
	out = append(out, parts[3:]...)
	return "/" + strings.Join(out, "/")
}
