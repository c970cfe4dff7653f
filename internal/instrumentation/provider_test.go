package instrumentation

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewProviderDisabled(t *testing.T) {
	ctx := context.Background()

	provider, err := NewProvider(ctx, Config{Enabled: false})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if provider.Enabled() {
		t.Error("expected provider to be disabled")
	}
	if provider.Metrics() == nil {
		t.Fatal("expected no-op metrics, got nil")
	}

	// Recording on no-op metrics must not panic
	provider.Metrics().RecordMigration(ctx, "mysql", StatusSuccess, time.Second)

	path := filepath.Join(t.TempDir(), "metrics.prom")
	if err := provider.WriteTextfile(path); err != nil {
		t.Errorf("expected no error writing textfile when disabled, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected no textfile to be written when disabled")
	}

	if err := provider.Shutdown(ctx); err != nil {
		t.Errorf("expected clean shutdown, got %v", err)
	}
}

func TestNewProviderInvalidConfig(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:         true,
		MetricsExporter: "carrier-pigeon",
		TracingExporter: ExporterNone,
	})
	if err == nil {
		t.Fatal("expected error for invalid exporter")
	}
}

func TestNewProviderPrometheusTextfile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kube_dbmigrate.prom")

	provider, err := NewProvider(ctx, Config{
		ServiceName:       "kube-dbmigrate",
		ServiceVersion:    "test",
		Enabled:           true,
		MetricsExporter:   ExporterPrometheus,
		TracingExporter:   ExporterNone,
		TraceSamplingRate: 1.0,
		MetricsTextfile:   path,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !provider.Enabled() {
		t.Error("expected provider to be enabled")
	}

	provider.Metrics().RecordMigration(ctx, "postgresql", StatusSuccess, 2*time.Second)
	provider.Metrics().RecordTransfer(ctx, DirectionUpload, 4096)

	if err := provider.Shutdown(ctx); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected textfile to be written: %v", err)
	}
	text := string(content)

	for _, want := range []string{"migrations_total", "migration_transfer_bytes_total", `vendor="postgresql"`} {
		if !strings.Contains(text, want) {
			t.Errorf("expected textfile to contain %q", want)
		}
	}
}
