// Package otel holds span helpers shared by the sync pipeline and its services.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrOrganizationID = attribute.Key("organization.id")
	AttrSyncRunID      = attribute.Key("sync_run.id")
	AttrStage          = attribute.Key("sync.stage")
	AttrErrorKind      = attribute.Key("sync.error_kind")
)

// StartSpan starts a span on tracer. A nil tracer continues the span already in ctx.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// Fail marks span as failed with err as an event. The status text stays generic
// because errors from the store and the provider can carry connection details.
// A non-empty kind is recorded as AttrErrorKind. A nil err is ignored.
func Fail(span trace.Span, kind string, err error) {
	if err == nil || span == nil {
		return
	}
	if kind != "" {
		span.SetAttributes(AttrErrorKind.String(kind))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "operation failed")
}

// RunAttributes identifies one stage of a sync run. Empty values are omitted.
func RunAttributes(organizationID, syncRunID, stage string) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for _, kv := range []attribute.KeyValue{
		AttrOrganizationID.String(organizationID),
		AttrSyncRunID.String(syncRunID),
		AttrStage.String(stage),
	} {
		if kv.Value.AsString() != "" {
			attrs = append(attrs, kv)
		}
	}
	return attrs
}
