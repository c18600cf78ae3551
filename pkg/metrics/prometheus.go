// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// EngineMetrics contains the engine's registered metrics. The scheduler
// records MatchesStarted and MatchesCompleted; the pool, rating, reporter,
// match-duration and gRPC metrics are registered but nothing in the
// engine sets them.
type EngineMetrics struct {
	BuildInfo *prometheus.GaugeVec
	StartTime prometheus.Gauge

	MatchesStarted   prometheus.Counter
	MatchesCompleted *prometheus.CounterVec
	MatchDuration    prometheus.Histogram

	PoolCapacity  prometheus.Gauge
	PoolInUse     prometheus.Gauge
	PoolWaitTotal prometheus.Counter

	RatingUpdatesTotal prometheus.Counter

	SpectatorsConnected prometheus.Gauge
	EventsPublished     *prometheus.CounterVec

	GRPCRequestsTotal   *prometheus.CounterVec
	GRPCRequestDuration *prometheus.HistogramVec
}

// NewEngineMetrics creates and registers the engine's metrics under namespace.
func NewEngineMetrics(namespace string) *EngineMetrics {
	return &EngineMetrics{
		BuildInfo: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		}, []string{"version", "commit", "build_time"}),
		StartTime: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "start_time_seconds",
			Help:      "Unix timestamp of engine start time",
		}),
		MatchesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "matches_started_total",
			Help:      "Total number of matches launched",
		}),
		MatchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "matches_completed_total",
			Help:      "Total number of matches completed, by outcome",
		}, []string{"outcome"}),
		MatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "match_duration_seconds",
			Help:      "Wall-clock duration of completed matches",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		PoolCapacity: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "capacity",
			Help:      "Configured sandbox pool capacity",
		}),
		PoolInUse: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "in_use",
			Help:      "Sandbox slots currently checked out",
		}),
		PoolWaitTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "acquire_wait_total",
			Help:      "Number of times a caller blocked waiting for a sandbox slot",
		}),
		RatingUpdatesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rating",
			Name:      "updates_total",
			Help:      "Total number of rating recalculations applied",
		}),
		SpectatorsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reporter",
			Name:      "spectators_connected",
			Help:      "Current number of connected spectator streams",
		}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporter",
			Name:      "events_published_total",
			Help:      "Total number of match events published, by kind",
		}, []string{"kind"}),
		GRPCRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grpc",
			Name:      "requests_total",
			Help:      "Total number of gRPC requests",
		}, []string{"method", "status"}),
		GRPCRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "grpc",
			Name:      "request_duration_seconds",
			Help:      "gRPC request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Registry owns the metrics HTTP endpoint and the engine's metric set.
type Registry struct {
	logger  *slog.Logger
	Engine  *EngineMetrics
	server  *http.Server
	version string
}

// NewRegistry creates a registry and registers the engine's metrics.
func NewRegistry(version, buildTime, gitCommit string, logger *slog.Logger) *Registry {
	reg := &Registry{logger: logger, version: version}
	reg.Engine = NewEngineMetrics("tournament")
	reg.Engine.BuildInfo.WithLabelValues(version, gitCommit, buildTime).Set(1)
	reg.Engine.StartTime.SetToCurrentTime()
	return reg
}

// StartMetricsServer serves /metrics and /health on port until the process exits.
func (r *Registry) StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	r.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	r.logger.Info("starting metrics server", "port", port)
	return r.server.ListenAndServe()
}

// StopMetricsServer gracefully shuts down the metrics HTTP server.
func (r *Registry) StopMetricsServer(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	r.logger.Info("stopping metrics server")
	return r.server.Shutdown(ctx)
}

// UnaryServerInterceptor instruments unary gRPC calls. The engine's own
// health-check gRPC server (cmd/tournament-engine) is built without it.
func (r *Registry) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		duration := time.Since(start)
		statusCode := "OK"
		if err != nil {
			statusCode = status.Code(err).String()
		}
		r.Engine.GRPCRequestsTotal.WithLabelValues(info.FullMethod, statusCode).Inc()
		r.Engine.GRPCRequestDuration.WithLabelValues(info.FullMethod).Observe(duration.Seconds())
		return resp, err
	}
}
