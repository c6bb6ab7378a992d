package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

const meterName = "chatterbridge/server"

type metrics struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler

	requests metric.Int64Counter
	duration metric.Float64Histogram
	uploads  metric.Int64Histogram
}

// newMetrics wires an OpenTelemetry meter to a private Prometheus registry
// so several servers can live in one process.
func newMetrics(version string) (*metrics, error) {
	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName("chatterbridge"),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	meter := provider.Meter(meterName)

	m := &metrics{
		provider: provider,
		handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	if m.requests, err = meter.Int64Counter("chatterbridge.server.requests",
		metric.WithDescription("HTTP requests served")); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("chatterbridge.server.request.duration",
		metric.WithDescription("HTTP request latency"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.uploads, err = meter.Int64Histogram("chatterbridge.server.upload.size",
		metric.WithDescription("Size of uploaded media"), metric.WithUnit("By")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *metrics) observeRequest(ctx context.Context, route, method string, status int, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("method", method),
		attribute.Int("status", status),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, seconds, attrs)
}

func (m *metrics) observeUpload(ctx context.Context, kind string, size int) {
	if m == nil {
		return
	}
	m.uploads.Record(ctx, int64(size), metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *metrics) shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
