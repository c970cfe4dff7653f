package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	attrVendor    = "vendor"
	attrStatus    = "status"
	attrStage     = "stage"
	attrDirection = "direction"
)

// Metrics provides methods for recording migration metrics. A nil *Metrics
// records nothing.
type Metrics struct {
	migrationsTotal   metric.Int64Counter
	migrationDuration metric.Float64Histogram

	stagesTotal   metric.Int64Counter
	stageDuration metric.Float64Histogram

	transferBytes metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.migrationsTotal, err = meter.Int64Counter(
		"migrations_total",
		metric.WithDescription("Total number of migration runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrations_total counter: %w", err)
	}

	m.migrationDuration, err = meter.Float64Histogram(
		"migration_duration_seconds",
		metric.WithDescription("Migration run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 10, 30, 60, 300, 900, 1800, 3600, 7200),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration_duration_seconds histogram: %w", err)
	}

	m.stagesTotal, err = meter.Int64Counter(
		"migration_stages_total",
		metric.WithDescription("Total number of migration stages executed"),
		metric.WithUnit("{stage}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration_stages_total counter: %w", err)
	}

	m.stageDuration, err = meter.Float64Histogram(
		"migration_stage_duration_seconds",
		metric.WithDescription("Migration stage duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 3600),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration_stage_duration_seconds histogram: %w", err)
	}

	m.transferBytes, err = meter.Int64Counter(
		"migration_transfer_bytes_total",
		metric.WithDescription("Total bytes moved between pods and the local staging directory"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration_transfer_bytes_total counter: %w", err)
	}

	return m, nil
}

// RecordMigration records a finished migration run.
func (m *Metrics) RecordMigration(ctx context.Context, vendor, status string, duration time.Duration) {
	if m == nil || m.migrationsTotal == nil || m.migrationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(
		attribute.String(attrVendor, vendor),
		attribute.String(attrStatus, status),
	)

	m.migrationsTotal.Add(ctx, 1, attrs)
	m.migrationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordStage records one executed stage of the state machine.
func (m *Metrics) RecordStage(ctx context.Context, stage, status string, duration time.Duration) {
	if m == nil || m.stagesTotal == nil || m.stageDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(
		attribute.String(attrStage, stage),
		attribute.String(attrStatus, status),
	)

	m.stagesTotal.Add(ctx, 1, attrs)
	m.stageDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordTransfer records bytes moved in one direction.
// Direction should be one of DirectionDownload or DirectionUpload.
func (m *Metrics) RecordTransfer(ctx context.Context, direction string, bytes int64) {
	if m == nil || m.transferBytes == nil || bytes <= 0 {
		return // Instrumentation not initialized
	}

	m.transferBytes.Add(ctx, bytes, metric.WithAttributes(attribute.String(attrDirection, direction)))
}
