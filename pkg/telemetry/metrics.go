package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/milkroute/ledger/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Metrics exposes Prometheus observability primitives for the ledger core.
type Metrics struct {
	registry *prometheus.Registry

	deliveriesRecorded  *prometheus.CounterVec
	deliveryWriteErrors prometheus.Counter
	reconcileRuns       *prometheus.CounterVec
	reconcileEntries    prometheus.Counter
	reconcileDuration   prometheus.Histogram
	projectionEvents    *prometheus.CounterVec
	projectionRefreshes *prometheus.CounterVec
}

// NewMetrics registers and returns Prometheus metrics for telemetry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	deliveriesRecorded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "milkledger_deliveries_recorded_total",
		Help: "Counts delivery outcomes written, by status.",
	}, []string{"status"})

	deliveryWriteErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "milkledger_delivery_write_errors_total",
		Help: "Counts rejected delivery writes.",
	})

	reconcileRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "milkledger_reconcile_runs_total",
		Help: "Counts reconciliation runs by outcome.",
	}, []string{"status"})

	reconcileEntries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "milkledger_reconcile_entries_created_total",
		Help: "Counts payment-ledger entries created by reconciliation.",
	})

	reconcileDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "milkledger_reconcile_duration_seconds",
		Help:    "Reconciliation run durations.",
		Buckets: prometheus.DefBuckets,
	})

	projectionEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "milkledger_projection_events_total",
		Help: "Counts changefeed events applied to the projection, by table and op.",
	}, []string{"table", "op"})

	projectionRefreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "milkledger_projection_refreshes_total",
		Help: "Counts full projection refreshes by outcome.",
	}, []string{"status"})

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		deliveriesRecorded,
		deliveryWriteErrors,
		reconcileRuns,
		reconcileEntries,
		reconcileDuration,
		projectionEvents,
		projectionRefreshes,
	)

	return &Metrics{
		registry:            registry,
		deliveriesRecorded:  deliveriesRecorded,
		deliveryWriteErrors: deliveryWriteErrors,
		reconcileRuns:       reconcileRuns,
		reconcileEntries:    reconcileEntries,
		reconcileDuration:   reconcileDuration,
		projectionEvents:    projectionEvents,
		projectionRefreshes: projectionRefreshes,
	}
}

func (m *Metrics) IncDeliveryRecorded(status string) {
	m.deliveriesRecorded.WithLabelValues(status).Inc()
}

func (m *Metrics) IncDeliveryWriteError() {
	m.deliveryWriteErrors.Inc()
}

func (m *Metrics) IncReconcileRun(status string) {
	m.reconcileRuns.WithLabelValues(status).Inc()
}

func (m *Metrics) AddReconcileEntries(n int) {
	m.reconcileEntries.Add(float64(n))
}

func (m *Metrics) ObserveReconcileDuration(d time.Duration) {
	m.reconcileDuration.Observe(d.Seconds())
}

func (m *Metrics) IncProjectionEvent(table, op string) {
	m.projectionEvents.WithLabelValues(table, op).Inc()
}

func (m *Metrics) IncProjectionRefresh(status string) {
	m.projectionRefreshes.WithLabelValues(status).Inc()
}

// Handler serves the registry in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func serveMetrics(lc fx.Lifecycle, cfg config.Config, m *Metrics, log *zap.Logger) {
	if cfg.MetricsAddr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_ = ctx
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("metrics server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

// Module provides metrics and serves the /metrics endpoint.
var Module = fx.Module("telemetry",
	fx.Provide(NewMetrics),
	fx.Invoke(serveMetrics),
)
