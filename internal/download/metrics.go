package download

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/fieldatlas/fieldatlas/internal/download"

// Metrics holds the OpenTelemetry instruments for download accounting.
// Instrument creation failures degrade to nil instruments (recording
// on a nil counter is skipped), so metrics never block a download.
type Metrics struct {
	tilesDownloaded metric.Int64Counter
	tilesSkipped    metric.Int64Counter
	tilesFailed     metric.Int64Counter
}

func newMetrics() *Metrics {
	meter := otel.Meter(meterName)
	m := &Metrics{}

	m.tilesDownloaded, _ = meter.Int64Counter(
		"tilecache.tiles.downloaded",
		metric.WithDescription("Tiles fetched from the provider and written to the cache"),
		metric.WithUnit("{tile}"),
	)
	m.tilesSkipped, _ = meter.Int64Counter(
		"tilecache.tiles.skipped",
		metric.WithDescription("Tiles already cached and skipped during a download"),
		metric.WithUnit("{tile}"),
	)
	m.tilesFailed, _ = meter.Int64Counter(
		"tilecache.tiles.failed",
		metric.WithDescription("Per-tile fetch failures, counted and non-fatal"),
		metric.WithUnit("{tile}"),
	)
	return m
}

func (m *Metrics) tileDownloaded(ctx context.Context) {
	if m.tilesDownloaded != nil {
		m.tilesDownloaded.Add(ctx, 1)
	}
}

func (m *Metrics) tileSkipped(ctx context.Context) {
	if m.tilesSkipped != nil {
		m.tilesSkipped.Add(ctx, 1)
	}
}

func (m *Metrics) tileFailed(ctx context.Context) {
	if m.tilesFailed != nil {
		m.tilesFailed.Add(ctx, 1)
	}
}
