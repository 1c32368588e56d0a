// Package telemetry wires OpenTelemetry tracing and metrics into the order
// sync engine. This file holds the span helpers used by application services.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of business spans
const TracerName = "ordersync"

// Span attribute keys. Metric attribute keys live in metrics.go.
const (
	SpanAttrShopID    = "shop_id"
	SpanAttrOrderSN   = "order_sn"
	SpanAttrRangeDays = "range_days"
	SpanAttrAlertID   = "alert_id"
	SpanAttrUF        = "uf"
)

// SpanOption is applied when a span starts. Later options win for the kind;
// attributes accumulate.
type SpanOption = trace.SpanStartOption

// WithAttribute adds one attribute, converting value by its dynamic type
func WithAttribute(key string, value any) SpanOption {
	return trace.WithAttributes(attr(key, value))
}

// WithSpanKind overrides the default internal kind
func WithSpanKind(kind trace.SpanKind) SpanOption {
	return trace.WithSpanKind(kind)
}

// StartSpan starts an internal span on the global tracer provider. The
// provider is looked up on every call so a provider installed after package
// init is honored.
//
//	ctx, span := telemetry.StartSpan(ctx, "order_sync.sync",
//	    telemetry.WithAttribute(telemetry.SpanAttrShopID, shopID),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, trace.Span) {
	all := make([]trace.SpanStartOption, 0, len(opts)+1)
	all = append(all, trace.WithSpanKind(trace.SpanKindInternal))
	all = append(all, opts...)
	return otel.Tracer(TracerName).Start(ctx, name, all...)
}

// SetAttributes sets alternating key/value pairs. A pair whose key is not
// a string is skipped, as is a trailing key without value.
func SetAttributes(span trace.Span, kv ...any) {
	if span == nil {
		return
	}
	span.SetAttributes(pairs(kv)...)
}

// RecordError records err as an exception event and fails the span
func RecordError(span trace.Span, err error, opts ...trace.EventOption) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks the span successful
func SetOK(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// AddEvent adds a named event carrying key/value pairs
func AddEvent(span trace.Span, name string, kv ...any) {
	if span != nil {
		span.AddEvent(name, trace.WithAttributes(pairs(kv)...))
	}
}

// GetTraceID returns the trace id of the span in ctx, or "" without a valid span
func GetTraceID(ctx context.Context) string {
	if id := trace.SpanContextFromContext(ctx).TraceID(); id.IsValid() {
		return id.String()
	}
	return ""
}

func pairs(kv []any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 1; i < len(kv); i += 2 {
		if key, ok := kv[i-1].(string); ok {
			out = append(out, attr(key, kv[i]))
		}
	}
	return out
}

func attr(key string, value any) attribute.KeyValue {
	k := attribute.Key(key)
	switch v := value.(type) {
	case string:
		return k.String(v)
	case int:
		return k.Int(v)
	case int64:
		return k.Int64(v)
	case float64:
		return k.Float64(v)
	case bool:
		return k.Bool(v)
	case []string:
		return k.StringSlice(v)
	case fmt.Stringer:
		return k.String(v.String())
	}
	return k.String(fmt.Sprint(value))
}
