// Package instrumentation provides OpenTelemetry metrics and tracing for
// migration runs.
//
// # Metrics
//
//   - migrations_total: Counter of runs by vendor and status
//   - migration_duration_seconds: Histogram of run durations
//   - migration_stages_total: Counter of executed stages by stage and status
//   - migration_stage_duration_seconds: Histogram of stage durations
//   - migration_transfer_bytes_total: Counter of bytes moved by direction
//
// Labels are bounded: vendor, stage and status come from fixed sets. Pod and
// namespace names are only attached to spans.
//
// A migration is a short-lived process, so the prometheus exporter does not
// serve /metrics. Instead the registry is written once, on Shutdown, to the
// file named by METRICS_TEXTFILE for the node_exporter textfile collector.
//
// # Tracing
//
// Each run produces a "migration.run" span with one child span per stage.
// Stage spans carry the pod they operate on.
//
// # Configuration
//
//   - INSTRUMENTATION_ENABLED: Enable instrumentation (default: false)
//   - METRICS_EXPORTER: prometheus, otlp, stdout or none (default: prometheus)
//   - METRICS_TEXTFILE: Textfile written by the prometheus exporter
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces and metrics
//   - OTEL_EXPORTER_OTLP_INSECURE: Use plain HTTP for OTLP
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 1.0)
//   - OTEL_SERVICE_NAME: Service name (default: kube-dbmigrate)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	m, err := migration.New(client, migration.MySQL{},
//		migration.WithMetrics(provider.Metrics()))
package instrumentation
