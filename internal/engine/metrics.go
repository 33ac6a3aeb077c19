package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Counters go through the global meter provider; they are no-ops until the
// host process installs one.
type instruments struct {
	filesScanned metric.Int64Counter
	filesSkipped metric.Int64Counter
	matches      metric.Int64Counter
	scans        metric.Int64Counter
}

var inst = newInstruments()

func newInstruments() instruments {
	meter := otel.Meter("github.com/redactyl/piiscan/internal/engine")
	scanned, _ := meter.Int64Counter("piiscan_files_scanned_total")
	skipped, _ := meter.Int64Counter("piiscan_files_skipped_total")
	matches, _ := meter.Int64Counter("piiscan_matches_total")
	scans, _ := meter.Int64Counter("piiscan_scans_total")
	return instruments{filesScanned: scanned, filesSkipped: skipped, matches: matches, scans: scans}
}

func (i instruments) recordScan(ctx context.Context, source string, scanned, skipped, matches int, err error) {
	src := metric.WithAttributes(attribute.String("source", source))
	i.filesScanned.Add(ctx, int64(scanned), src)
	i.filesSkipped.Add(ctx, int64(skipped), src)
	i.matches.Add(ctx, int64(matches), src)
	i.scans.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.Bool("error", err != nil),
	))
}
