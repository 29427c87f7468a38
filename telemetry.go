package tellerd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"pkt.systems/pslog"
)

type telemetryBundle struct {
	meterProvider *sdkmetric.MeterProvider
	metricsServer *http.Server
	metricsLn     net.Listener
	pprofServer   *http.Server
	pprofLn       net.Listener
	logger        pslog.Logger
}

func (t *telemetryBundle) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric shutdown: %w", err))
			if t.logger != nil {
				t.logger.Warn("telemetry.shutdown.metric_failure", "error", err)
			}
		}
	}
	if t.metricsServer != nil {
		if err := t.metricsServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	if t.metricsLn != nil {
		_ = t.metricsLn.Close()
	}
	if t.pprofServer != nil {
		if err := t.pprofServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, fmt.Errorf("pprof server shutdown: %w", err))
		}
	}
	if t.pprofLn != nil {
		_ = t.pprofLn.Close()
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

var runtimeMetricsOnce sync.Once
var runtimeMetricsErr error

func setupTelemetry(ctx context.Context, metricsListen, pprofListen string, enableRuntimeMetrics bool, logger pslog.Logger) (*telemetryBundle, error) {
	metricsListen = strings.TrimSpace(metricsListen)
	pprofListen = strings.TrimSpace(pprofListen)
	if metricsListen == "" && pprofListen == "" {
		return nil, nil
	}
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(
			semconv.ServiceName("tellerd"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	bundle := &telemetryBundle{logger: logger}

	if metricsListen != "" {
		registry := prometheus.NewRegistry()
		exporterOpts := []otelprometheus.Option{otelprometheus.WithRegisterer(registry)}
		if enableRuntimeMetrics {
			exporterOpts = append(exporterOpts, otelprometheus.WithProducer(otelruntime.NewProducer()))
		}
		exporter, err := otelprometheus.New(exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("telemetry: start prometheus exporter: %w", err)
		}
		bundle.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		otel.SetMeterProvider(bundle.meterProvider)
		if enableRuntimeMetrics {
			if err := startRuntimeMetricsWithProvider(bundle.meterProvider); err != nil {
				_ = bundle.meterProvider.Shutdown(ctx)
				return nil, err
			}
			logger.Info("telemetry.runtime_metrics.enabled")
		}
		metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		bundle.metricsServer, bundle.metricsLn, err = startMetricsServer(metricsListen, metricsHandler, logger)
		if err != nil {
			_ = bundle.meterProvider.Shutdown(ctx)
			return nil, err
		}
		logger.Info("telemetry.metrics.enabled", "listen", metricsListen)
	}

	if pprofListen != "" {
		bundle.pprofServer, bundle.pprofLn, err = startPprofServer(pprofListen, logger)
		if err != nil {
			_ = bundle.Shutdown(ctx)
			return nil, err
		}
		logger.Info("profiling.pprof.enabled", "listen", pprofListen)
	}

	return bundle, nil
}

func startMetricsServer(addr string, handler http.Handler, logger pslog.Logger) (*http.Server, net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: metrics listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Handler: mux,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if logger != nil {
				logger.Warn("telemetry.metrics.serve_error", "error", err)
			}
		}
	}()
	return srv, ln, nil
}

func startPprofServer(addr string, logger pslog.Logger) (*http.Server, net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("profiling: pprof listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	srv := &http.Server{
		Handler: mux,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if logger != nil {
				logger.Warn("profiling.pprof.serve_error", "error", err)
			}
		}
	}()
	return srv, ln, nil
}

func startRuntimeMetricsWithProvider(provider metric.MeterProvider) error {
	if provider == nil {
		return fmt.Errorf("profiling: meter provider unavailable")
	}
	runtimeMetricsOnce.Do(func() {
		runtimeMetricsErr = otelruntime.Start(otelruntime.WithMeterProvider(provider))
	})
	return runtimeMetricsErr
}

// serverMetrics holds the dispatch-level instruments. Instruments are created
// against the global meter provider, which delegates once Run installs the
// real provider; without a metrics listener they stay no-ops.
type serverMetrics struct {
	dispatches      metric.Int64Counter
	dispatchLatency metric.Float64Histogram
	staged          metric.Int64Counter
	resolved        metric.Int64Counter
}

func newServerMetrics(provider metric.MeterProvider) (*serverMetrics, error) {
	meter := provider.Meter("pkt.systems/tellerd")
	dispatches, err := meter.Int64Counter("tellerd.dispatch.total",
		metric.WithDescription("Tool dispatches by tool name and outcome."))
	if err != nil {
		return nil, fmt.Errorf("telemetry: dispatch counter: %w", err)
	}
	latency, err := meter.Float64Histogram("tellerd.dispatch.duration",
		metric.WithDescription("Tool dispatch duration."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: dispatch histogram: %w", err)
	}
	staged, err := meter.Int64Counter("tellerd.transactions.staged.total",
		metric.WithDescription("Pending transactions staged by kind."))
	if err != nil {
		return nil, fmt.Errorf("telemetry: staged counter: %w", err)
	}
	resolved, err := meter.Int64Counter("tellerd.transactions.resolved.total",
		metric.WithDescription("Pending transactions resolved by kind and action."))
	if err != nil {
		return nil, fmt.Errorf("telemetry: resolved counter: %w", err)
	}
	return &serverMetrics{
		dispatches:      dispatches,
		dispatchLatency: latency,
		staged:          staged,
		resolved:        resolved,
	}, nil
}

func (m *serverMetrics) dispatchObserved(tool, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("outcome", outcome),
	)
	m.dispatches.Add(context.Background(), 1, attrs)
	m.dispatchLatency.Record(context.Background(), elapsed.Seconds(), attrs)
}

func (m *serverMetrics) transactionStaged(kind string) {
	if m == nil {
		return
	}
	m.staged.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *serverMetrics) transactionResolved(kind, action string) {
	if m == nil {
		return
	}
	m.resolved.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("action", action),
	))
}
