// Package telemetry installs the OpenTelemetry meter provider that backs the
// scan, API call and HTTP request counters. Without a configured exporter or
// reader the global no-op provider stays in place.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
)

// ExportInterval is how often the OTLP reader pushes.
const ExportInterval = 10 * time.Second

type Options struct {
	Service string
	Version string
	// Readers are attached in addition to the OTLP exporter.
	Readers []sdkmetric.Reader
	Logger  *slog.Logger
}

// Endpoint returns the OTLP metrics endpoint from the environment, or "" when
// export is not configured.
func Endpoint() string {
	if e := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); e != "" {
		return e
	}
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
}

// Init sets the global meter provider and returns its shutdown function,
// which flushes pending data. The exporter reads endpoint, headers and TLS
// settings from the standard OTEL_EXPORTER_OTLP_* variables.
func Init(ctx context.Context, opts Options) (func(context.Context) error, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	readers := append([]sdkmetric.Reader(nil), opts.Readers...)
	if endpoint := Endpoint(); endpoint != "" {
		initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		exp, err := otlpmetricgrpc.New(initCtx,
			otlpmetricgrpc.WithDialOption(grpc.WithUserAgent(opts.Service+"/"+opts.Version)),
		)
		if err != nil {
			log.Warn("metrics exporter init failed", "endpoint", endpoint, "error", err)
		} else {
			readers = append(readers, sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(ExportInterval)))
			log.Debug("metrics export enabled", "endpoint", endpoint)
		}
	}
	if len(readers) == 0 {
		return func(context.Context) error { return nil }, nil
	}

	res, err := sdkresource.Merge(sdkresource.Default(), sdkresource.NewSchemaless(
		semconv.ServiceName(opts.Service),
		semconv.ServiceVersion(opts.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("metrics resource: %w", err)
	}
	mopts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		mopts = append(mopts, sdkmetric.WithReader(r))
	}
	mp := sdkmetric.NewMeterProvider(mopts...)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}
