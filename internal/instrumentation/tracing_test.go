package instrumentation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// Test constants for tracing tests
const (
	tracingTestRunID     = "3f0c7c1e-run"
	tracingTestContext   = "prod"
	tracingTestNamespace = "databases"
	tracingTestPod       = "mariadb-0"
)

func withSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func attrValue(attrs []attribute.KeyValue, key string) (string, bool) {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value.AsString(), true
		}
	}
	return "", false
}

func TestPodAttributes(t *testing.T) {
	t.Run("all fields", func(t *testing.T) {
		attrs := PodAttributes(tracingTestContext, tracingTestNamespace, tracingTestPod)
		if len(attrs) != 3 {
			t.Fatalf("Expected 3 attributes, got %d", len(attrs))
		}
		if v, _ := attrValue(attrs, SpanAttrPod); v != tracingTestPod {
			t.Errorf("Expected pod %q, got %q", tracingTestPod, v)
		}
	})

	t.Run("empty fields are skipped", func(t *testing.T) {
		attrs := PodAttributes("", tracingTestNamespace, "")
		if len(attrs) != 1 {
			t.Fatalf("Expected 1 attribute, got %d", len(attrs))
		}
		if attrs[0].Key != SpanAttrNamespace {
			t.Errorf("Expected key %q, got %q", SpanAttrNamespace, attrs[0].Key)
		}
	})
}

func TestStartMigrationAndStageSpans(t *testing.T) {
	recorder := withSpanRecorder(t)

	ctx, root := StartMigrationSpan(context.Background(), tracingTestRunID, "mysql")
	_, stage := StartStageSpan(ctx, "BackedUp", PodAttributes(tracingTestContext, tracingTestNamespace, tracingTestPod)...)
	SetSpanSuccess(stage)
	stage.End()
	SetSpanError(root, errors.New("boom"))
	root.End()

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("Expected 2 ended spans, got %d", len(spans))
	}

	stageSpan, rootSpan := spans[0], spans[1]

	if stageSpan.Name() != "migration.stage.BackedUp" {
		t.Errorf("Unexpected stage span name %q", stageSpan.Name())
	}
	if stageSpan.Parent().SpanID() != rootSpan.SpanContext().SpanID() {
		t.Error("Expected stage span to be a child of the migration span")
	}
	if v, _ := attrValue(stageSpan.Attributes(), SpanAttrStage); v != "BackedUp" {
		t.Errorf("Expected stage attribute BackedUp, got %q", v)
	}
	if v, _ := attrValue(stageSpan.Attributes(), SpanAttrContext); v != tracingTestContext {
		t.Errorf("Expected context attribute %q, got %q", tracingTestContext, v)
	}
	if stageSpan.Status().Code != codes.Ok {
		t.Errorf("Expected stage span status Ok, got %v", stageSpan.Status().Code)
	}

	if rootSpan.Name() != "migration.run" {
		t.Errorf("Unexpected root span name %q", rootSpan.Name())
	}
	if v, _ := attrValue(rootSpan.Attributes(), SpanAttrRunID); v != tracingTestRunID {
		t.Errorf("Expected run id %q, got %q", tracingTestRunID, v)
	}
	if rootSpan.Status().Code != codes.Error || rootSpan.Status().Description != "boom" {
		t.Errorf("Expected error status 'boom', got %v %q", rootSpan.Status().Code, rootSpan.Status().Description)
	}
	if len(rootSpan.Events()) == 0 {
		t.Error("Expected the error to be recorded as a span event")
	}
}

func TestSetSpanErrorIgnoresNil(t *testing.T) {
	recorder := withSpanRecorder(t)

	_, span := StartSpan(context.Background(), "noop")
	SetSpanError(span, nil)
	span.End()

	if code := recorder.Ended()[0].Status().Code; code != codes.Unset {
		t.Errorf("Expected status to stay unset, got %v", code)
	}
}

func TestGetTraceID(t *testing.T) {
	if id := GetTraceID(context.Background()); id != "" {
		t.Errorf("Expected empty trace id without a span, got %q", id)
	}

	withSpanRecorder(t)
	ctx, span := StartSpan(context.Background(), "traced")
	defer span.End()

	id := GetTraceID(ctx)
	if len(id) != 32 {
		t.Errorf("Expected a 32 character trace id, got %q", id)
	}
	if id != span.SpanContext().TraceID().String() {
		t.Error("Expected trace id of the active span")
	}
}
