package observability

// https://opentelemetry.io/docs/languages/go/exporters/

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/sdk/metric"

	"github.com/benz9527/xtree/lib/infra"
)

type ExporterKind string

const (
	NoneExporter       ExporterKind = "none"
	StdoutExporter     ExporterKind = "stdout"
	PrometheusExporter ExporterKind = "prometheus"
)

func ParseExporterKind(kind string) (ExporterKind, error) {
	switch k := ExporterKind(strings.ToLower(strings.TrimSpace(kind))); k {
	case "":
		return NoneExporter, nil
	case NoneExporter, StdoutExporter, PrometheusExporter:
		return k, nil
	default:
	}
	return NoneExporter, infra.NewErrorStack("unknown metrics exporter " + kind)
}

// InitMetricsExporter installs the global meter provider for kind and
// returns its shutdown callback.
func InitMetricsExporter(kind ExporterKind, interval time.Duration) (func(ctx context.Context) error, error) {
	switch kind {
	case StdoutExporter:
		return newConsoleMetricsExporter(interval, interval)
	case PrometheusExporter:
		return newPrometheusMetricsExporter()
	default:
	}
	return func(context.Context) error { return nil }, nil
}

// Serves for test/dev environment.
func newConsoleMetricsExporter(interval, timeout time.Duration, opts ...stdoutmetric.Option) (func(ctx context.Context) error, error) {
	exporter, err := stdoutmetric.New(opts...)
	if err != nil {
		return nil, infra.WrapErrorStack(err)
	}
	mp := metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(
		exporter,
		metric.WithInterval(interval),
		metric.WithTimeout(timeout),
	)))
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

// Serves for the product environment and fetch stats metrics by HTTP.
func newPrometheusMetricsExporter() (func(ctx context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, infra.WrapErrorStack(err)
	}
	mp := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

// NewMetricsServer serves the prometheus exporter's registry on /metrics.
// The caller owns the server lifecycle.
func NewMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
