package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service handles Prometheus metrics collection
type Service struct {
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// Index metrics
	packageUploadsTotal   *prometheus.CounterVec
	packageDownloadsTotal *prometheus.CounterVec
	packageRemovalsTotal  *prometheus.CounterVec
	packageCount          prometheus.Gauge
	fallbackRedirects     prometheus.Counter

	// System metrics
	systemInfo *prometheus.GaugeVec
}

// NewService creates a new metrics service
func NewService() *Service {
	registry := prometheus.NewRegistry()

	httpRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pypiserver_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pypiserver_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	httpRequestsInFlight := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pypiserver_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
		[]string{"method", "endpoint"},
	)

	packageUploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pypiserver_package_uploads_total",
			Help: "Total number of package uploads",
		},
		[]string{"kind"},
	)

	packageDownloadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pypiserver_package_downloads_total",
			Help: "Total number of package downloads",
		},
		[]string{"kind"},
	)

	packageRemovalsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pypiserver_package_removals_total",
			Help: "Total number of package removals",
		},
		[]string{"kind"},
	)

	packageCount := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pypiserver_packages",
			Help: "Number of distinct projects in the catalog",
		},
	)

	fallbackRedirects := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pypiserver_fallback_redirects_total",
			Help: "Total number of redirects to the upstream index",
		},
	)

	systemInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pypiserver_info",
			Help: "Build information",
		},
		[]string{"version", "go_version"},
	)

	registry.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		httpRequestsInFlight,
		packageUploadsTotal,
		packageDownloadsTotal,
		packageRemovalsTotal,
		packageCount,
		fallbackRedirects,
		systemInfo,
	)

	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return &Service{
		registry:              registry,
		httpRequestsTotal:     httpRequestsTotal,
		httpRequestDuration:   httpRequestDuration,
		httpRequestsInFlight:  httpRequestsInFlight,
		packageUploadsTotal:   packageUploadsTotal,
		packageDownloadsTotal: packageDownloadsTotal,
		packageRemovalsTotal:  packageRemovalsTotal,
		packageCount:          packageCount,
		fallbackRedirects:     fallbackRedirects,
		systemInfo:            systemInfo,
	}
}

// GetRegistry returns the Prometheus registry
func (m *Service) GetRegistry() *prometheus.Registry {
	return m.registry
}

// GetHandler returns the Prometheus HTTP handler
func (m *Service) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GinMiddleware returns a Gin middleware for HTTP metrics collection
func (m *Service) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		m.httpRequestsInFlight.WithLabelValues(c.Request.Method, path).Inc()
		defer m.httpRequestsInFlight.WithLabelValues(c.Request.Method, path).Dec()

		c.Next()

		duration := time.Since(start).Seconds()
		statusCode := fmt.Sprintf("%d", c.Writer.Status())

		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, statusCode).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

// RecordUpload records a package upload metric
func (m *Service) RecordUpload(kind string) {
	m.packageUploadsTotal.WithLabelValues(kind).Inc()
}

// RecordDownload records a package download metric
func (m *Service) RecordDownload(kind string) {
	m.packageDownloadsTotal.WithLabelValues(kind).Inc()
}

// RecordRemoval records a package removal metric
func (m *Service) RecordRemoval(kind string) {
	m.packageRemovalsTotal.WithLabelValues(kind).Inc()
}

// SetPackageCount sets the distinct project count gauge
func (m *Service) SetPackageCount(count int) {
	m.packageCount.Set(float64(count))
}

// RecordFallbackRedirect counts a redirect to the upstream index
func (m *Service) RecordFallbackRedirect() {
	m.fallbackRedirects.Inc()
}

// SetSystemInfo sets build information metrics
func (m *Service) SetSystemInfo(version, goVersion string) {
	m.systemInfo.WithLabelValues(version, goVersion).Set(1)
}

// Server exposes metrics on a separate listener
type Server struct {
	server *http.Server
}

// NewServer creates a metrics server on a separate port
func NewServer(port int, metrics *Service) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.GetHandler())

	return &Server{
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}
}

// Start starts the metrics server
func (ms *Server) Start() error {
	return ms.server.ListenAndServe()
}

// Shutdown gracefully shuts down the metrics server
func (ms *Server) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}
