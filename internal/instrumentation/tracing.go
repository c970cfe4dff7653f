package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for the kube-dbmigrate package.
const TracerName = "github.com/giantswarm/kube-dbmigrate"

// Span attribute keys for migration operations.
const (
	// SpanAttrRunID is the migration run identifier.
	SpanAttrRunID = "migration.run_id"

	// SpanAttrVendor is the database vendor family.
	SpanAttrVendor = "migration.vendor"

	// SpanAttrStage is the state machine stage.
	SpanAttrStage = "migration.stage"

	// SpanAttrContext is the kube context.
	SpanAttrContext = "k8s.context"

	// SpanAttrNamespace is the Kubernetes namespace.
	SpanAttrNamespace = "k8s.namespace"

	// SpanAttrPod is the pod name.
	SpanAttrPod = "k8s.pod"
)

// StartSpan starts a new span with the given name and attributes.
// The caller is responsible for ending the span with defer span.End().
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartMigrationSpan starts the root span of a migration run.
func StartMigrationSpan(ctx context.Context, runID, vendor string) (context.Context, trace.Span) {
	return StartSpan(ctx, "migration.run",
		attribute.String(SpanAttrRunID, runID),
		attribute.String(SpanAttrVendor, vendor),
	)
}

// StartStageSpan starts a span for one state machine stage.
func StartStageSpan(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, attribute.String(SpanAttrStage, stage))
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "migration.stage."+stage,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// PodAttributes returns span attributes identifying a pod.
func PodAttributes(contextName, namespace, pod string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if contextName != "" {
		attrs = append(attrs, attribute.String(SpanAttrContext, contextName))
	}
	if namespace != "" {
		attrs = append(attrs, attribute.String(SpanAttrNamespace, namespace))
	}
	if pod != "" {
		attrs = append(attrs, attribute.String(SpanAttrPod, pod))
	}
	return attrs
}

// SetSpanError records an error on the span and sets the status to error.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace ID from the current span in context.
// Returns empty string if no valid span is present.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
