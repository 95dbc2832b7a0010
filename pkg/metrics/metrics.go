package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/beam-cloud/redismap/pkg/types"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	metricOperationsTotal   = "redismap_operations_total"
	metricOperationDuration = "redismap_operation_duration_seconds"

	statusOk    = "ok"
	statusError = "error"
)

// PrometheusMapMetrics counts and times map operations. It satisfies the
// map package's Observer interface.
type PrometheusMapMetrics struct {
	collectorRegistrar *prometheus.Registry
	port               int

	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

func NewPrometheusMapMetrics(promConfig types.PrometheusConfig) *PrometheusMapMetrics {
	collectorRegistrar := prometheus.NewRegistry()
	collectorRegistrar.MustRegister(
		collectors.NewGoCollector(),                                       // Metrics from Go runtime.
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), // Metrics about the current UNIX process.
	)

	factory := promauto.With(collectorRegistrar)

	return &PrometheusMapMetrics{
		collectorRegistrar: collectorRegistrar,
		port:               promConfig.Port,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: metricOperationsTotal,
			Help: "Map operations by name and outcome.",
		}, []string{"op", "status"}),
		durations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricOperationDuration,
			Help:    "Latency of map operations, including all Redis round trips.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"op"}),
	}
}

func (m *PrometheusMapMetrics) ObserveOperation(op string, d time.Duration, err error) {
	status := statusOk
	if err != nil {
		status = statusError
	}

	m.operations.WithLabelValues(op, status).Inc()
	m.durations.WithLabelValues(op).Observe(d.Seconds())
}

func (m *PrometheusMapMetrics) Registry() *prometheus.Registry {
	return m.collectorRegistrar
}

// Handler returns the /metrics endpoint without starting a server.
func (m *PrometheusMapMetrics) Handler() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(m.collectorRegistrar, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})))

	return e
}

// ListenAndServe blocks until ctx is done or the server fails.
func (m *PrometheusMapMetrics) ListenAndServe(ctx context.Context) error {
	// Accept both HTTP/2 and HTTP/1
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%v", m.port),
		Handler: h2c.NewHandler(m.Handler(), &http2.Server{}),
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shut down metrics server")
		}
	}()

	log.Info().Int("port", m.port).Msg("serving metrics")

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}
