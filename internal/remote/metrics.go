package remote

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var apiCalls = newAPICallCounter()

func newAPICallCounter() metric.Int64Counter {
	c, _ := otel.Meter("github.com/redactyl/piiscan/internal/remote").Int64Counter("piiscan_github_api_calls_total")
	return c
}

func recordCall(ctx context.Context, endpoint string, err error) {
	apiCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.Bool("error", err != nil),
	))
}
