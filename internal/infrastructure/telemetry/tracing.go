// Package telemetry provides OpenTelemetry integration for distributed tracing.
// This file contains helpers for business-level spans in application services.
package telemetry

import (
	"context"
	"fmt"

	"github.com/invoicing/backend/internal/domain/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of business spans
const TracerName = "invoicing-backend"

// Attribute keys for business spans
const (
	SpanAttrTenantID       = "tenant_id"
	SpanAttrInvoiceID      = "invoice_id"
	SpanAttrInvoiceStatus  = "invoice_status"
	SpanAttrPaymentID      = "payment_id"
	SpanAttrAmount         = "amount"
	SpanAttrCurrency       = "currency"
	SpanAttrIdempotencyKey = "idempotency_key"
	SpanAttrReplayed       = "idempotent_replay"
	SpanAttrAttempt        = "attempt"
	SpanAttrErrorCode      = "error.code"
)

// EventRetry is the span event added before a transaction is re-run
const EventRetry = "transaction.retry"

// clientCodes are rejections caused by the request itself. They are recorded
// on the span but leave its status unset.
var clientCodes = map[string]bool{
	shared.CodeNotFound:               true,
	shared.CodeMissingTenant:          true,
	shared.CodeValidationFailed:       true,
	shared.CodeInvalidStateTransition: true,
	shared.CodeAmountExceedsBalance:   true,
	shared.CodeDuplicateKey:           true,
}

// StartSpan starts an internal span with optional key/value attributes.
// The caller must end the span.
func StartSpan(ctx context.Context, spanName string, keyValues ...any) (context.Context, trace.Span) {
	var opts []trace.SpanStartOption
	if attrs := pairs(keyValues); len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, spanName, opts...)
}

// StartServiceSpan starts a span named {service}.{method}.
//
//	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record")
//	defer span.End()
func StartServiceSpan(ctx context.Context, service, method string, keyValues ...any) (context.Context, trace.Span) {
	return StartSpan(ctx, service+"."+method, keyValues...)
}

// SetAttributes adds key/value pairs to span. Non-string keys are skipped.
func SetAttributes(span trace.Span, keyValues ...any) {
	if span == nil {
		return
	}
	span.SetAttributes(pairs(keyValues)...)
}

// RecordError records err on span. Client rejections only carry their code;
// anything else also marks the span as failed.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	code := shared.CodeOf(err)
	if code != "" {
		span.SetAttributes(attribute.String(SpanAttrErrorCode, code))
	}
	span.RecordError(err)
	if !clientCodes[code] {
		span.SetStatus(codes.Error, err.Error())
	}
}

// RecordRetry adds a retry event carrying the cause's error code
func RecordRetry(span trace.Span, cause error) {
	AddEvent(span, EventRetry, SpanAttrErrorCode, shared.CodeOf(cause))
}

// AddEvent adds a time-stamped annotation to span
func AddEvent(span trace.Span, name string, keyValues ...any) {
	if span == nil {
		return
	}
	span.AddEvent(name, trace.WithAttributes(pairs(keyValues)...))
}

// GetTraceID returns the trace ID of the span in ctx, or "" when untraced.
func GetTraceID(ctx context.Context) string {
	traceID := trace.SpanFromContext(ctx).SpanContext().TraceID()
	if !traceID.IsValid() {
		return ""
	}
	return traceID.String()
}

func pairs(keyValues []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, toAttribute(key, keyValues[i+1]))
	}
	return attrs
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
