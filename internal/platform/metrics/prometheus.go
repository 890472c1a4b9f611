package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/Bernard-Murphy/dbay-public/internal/platform/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsManager holds the frontend's Prometheus collectors.
type MetricsManager struct {
	Registry *prometheus.Registry

	PageRequestsTotal  *prometheus.CounterVec
	PageLatency        *prometheus.HistogramVec
	BackendCallsTotal  *prometheus.CounterVec
	BackendCallLatency *prometheus.HistogramVec
	BidsSubmittedTotal *prometheus.CounterVec
	UploadsTotal       *prometheus.CounterVec
	RateRefreshTotal   *prometheus.CounterVec
}

// NewMetricsManager creates the collectors on a private registry.
func NewMetricsManager(namespace string) *MetricsManager {
	registry := prometheus.NewRegistry()

	m := &MetricsManager{
		Registry: registry,
		PageRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_requests_total",
			Help:      "Total number of page requests by route and status code.",
		}, []string{"route", "method", "status"}),
		PageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_request_latency_seconds",
			Help:      "Latency of page requests by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		BackendCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_calls_total",
			Help:      "Total number of backend REST calls by service, operation and outcome.",
		}, []string{"service", "op", "outcome"}),
		BackendCallLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_call_latency_seconds",
			Help:      "Latency of backend REST calls by service and operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "op"}),
		BidsSubmittedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bids_submitted_total",
			Help:      "Bids submitted through the bid panel by outcome.",
		}, []string{"outcome"}),
		UploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_uploads_total",
			Help:      "Listing media uploads by media type and outcome.",
		}, []string{"media_type", "outcome"}),
		RateRefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "doge_rate_refresh_total",
			Help:      "DOGE/USD rate refresh attempts by outcome.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(
		m.PageRequestsTotal,
		m.PageLatency,
		m.BackendCallsTotal,
		m.BackendCallLatency,
		m.BidsSubmittedTotal,
		m.UploadsTotal,
		m.RateRefreshTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveBackendCall records one backend call. Safe on a nil manager.
func (m *MetricsManager) ObserveBackendCall(service, op string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.BackendCallsTotal.WithLabelValues(service, op, outcome).Inc()
	m.BackendCallLatency.WithLabelValues(service, op).Observe(time.Since(started).Seconds())
}

// ObservePage records one rendered page or form post. Safe on a nil manager.
func (m *MetricsManager) ObservePage(route, method, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.PageRequestsTotal.WithLabelValues(route, method, status).Inc()
	m.PageLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

// BidSubmitted counts a bid panel submission. Safe on a nil manager.
func (m *MetricsManager) BidSubmitted(outcome string) {
	if m == nil {
		return
	}
	m.BidsSubmittedTotal.WithLabelValues(outcome).Inc()
}

// UploadFinished counts one media file upload. Safe on a nil manager.
func (m *MetricsManager) UploadFinished(mediaType, outcome string) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(mediaType, outcome).Inc()
}

// RateRefreshed counts one price feed refresh. Safe on a nil manager.
func (m *MetricsManager) RateRefreshed(outcome string) {
	if m == nil {
		return
	}
	m.RateRefreshTotal.WithLabelValues(outcome).Inc()
}

// NewMetricsServer returns the /metrics server, or nil when port is empty.
func NewMetricsServer(port string, registry *prometheus.Registry) *http.Server {
	if port == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// StartMetricsServer serves metrics until the server is shut down.
func StartMetricsServer(server *http.Server, appLogger *logger.Logger) {
	if server == nil {
		appLogger.Info("Prometheus metrics server port not configured, server will not start")
		return
	}
	appLogger.Info("Prometheus metrics server starting", zap.String("addr", server.Addr), zap.String("path", "/metrics"))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		appLogger.Error("Prometheus metrics server failed", zap.Error(err))
	}
}
