package observability

// https://opentelemetry.io/docs/languages/go/exporters/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/multierr"
)

type MetricsExporterType string

const (
	NoneMetricsExporter       MetricsExporterType = "none"
	StdoutMetricsExporter     MetricsExporterType = "stdout"
	PrometheusMetricsExporter MetricsExporterType = "prometheus"
)

var ErrUnknownMetricsExporter = errors.New("[observability] unknown metrics exporter")

func ParseMetricsExporterType(typ string) (MetricsExporterType, error) {
	switch t := MetricsExporterType(typ); t {
	case NoneMetricsExporter, StdoutMetricsExporter, PrometheusMetricsExporter:
		return t, nil
	case "":
		return NoneMetricsExporter, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetricsExporter, typ)
}

type MetricsExporterConfig struct {
	Type MetricsExporterType
	// Stdout exporter settings.
	Interval time.Duration
	Timeout  time.Duration
	Writer   io.Writer
	// Prometheus scrape endpoint, like ":9464".
	Addr string
}

// ShutdownFunc flushes and stops the exporter.
type ShutdownFunc func(ctx context.Context) error

func nopShutdown(context.Context) error { return nil }

// InitMetricsExporter builds the meter provider by the config and
// registers it as the otel global one.
func InitMetricsExporter(cfg MetricsExporterConfig) (api.MeterProvider, ShutdownFunc, error) {
	switch cfg.Type {
	case StdoutMetricsExporter:
		if cfg.Interval <= 0 {
			cfg.Interval = 10 * time.Second
		}
		if cfg.Timeout <= 0 {
			cfg.Timeout = cfg.Interval
		}
		var opts []stdoutmetric.Option
		if cfg.Writer != nil {
			opts = append(opts, stdoutmetric.WithWriter(cfg.Writer))
		}
		return newConsoleMetricsExporter(cfg.Interval, cfg.Timeout, opts...)
	case PrometheusMetricsExporter:
		return newPrometheusMetricsExporter(cfg.Addr)
	case NoneMetricsExporter, "":
		mp := noop.NewMeterProvider()
		otel.SetMeterProvider(mp)
		return mp, nopShutdown, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnknownMetricsExporter, cfg.Type)
}

// Serves for test/dev environment.
func newConsoleMetricsExporter(interval, timeout time.Duration, opts ...stdoutmetric.Option) (api.MeterProvider, ShutdownFunc, error) {
	exporter, err := stdoutmetric.New(opts...)
	if err != nil {
		return nil, nil, err
	}
	mp := metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(
		exporter,
		metric.WithInterval(interval),
		metric.WithTimeout(timeout),
	)))
	otel.SetMeterProvider(mp)
	return mp, mp.Shutdown, nil
}

// Serves for the product environment and fetch stats metrics by HTTP.
// The registry is private, the scrape handler is mounted at /metrics.
func newPrometheusMetricsExporter(addr string) (api.MeterProvider, ShutdownFunc, error) {
	reg := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, nil, err
	}
	mp := metric.NewMeterProvider(metric.WithReader(exporter))
	if addr == "" {
		otel.SetMeterProvider(mp)
		return mp, mp.Shutdown, nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, multierr.Append(
			fmt.Errorf("[observability] listen on %s: %w", addr, err),
			mp.Shutdown(context.Background()),
		)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = srv.Serve(ln)
	}()
	otel.SetMeterProvider(mp)
	return mp, func(ctx context.Context) error {
		return multierr.Combine(
			srv.Shutdown(ctx),
			mp.Shutdown(ctx),
		)
	}, nil
}
