// Package middleware provides the HTTP middleware of the invoicing API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// Tracing traces every request as "invoicing-backend"
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(TracingConfig{ServiceName: "invoicing-backend", Enabled: true})
}

// TracingWithConfig wraps otelgin. Spans are named "METHOD route", for
// example "POST /api/v1/invoices/:id/payments".
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// TracingAttributeInjector copies the request id, tenant and idempotency key
// onto the request span. It must run after RequestID, Tenant and IdempotencyKey.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		if span := trace.SpanFromContext(c.Request.Context()); span.IsRecording() {
			span.SetAttributes(requestAttributes(c)...)
		}
		c.Next()
	}
}

func requestAttributes(c *gin.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if id := GetRequestID(c); id != "" {
		attrs = append(attrs, attribute.String("request_id", id))
	}
	if tenant := GetTenantID(c); tenant != uuid.Nil {
		attrs = append(attrs, attribute.String("tenant_id", tenant.String()))
	}
	if key := GetIdempotencyKey(c); key != "" {
		attrs = append(attrs, attribute.String("idempotency_key", key))
	}
	return attrs
}

// SpanErrorMarker records the response status on the request span. Only
// server failures mark the span as failed: a 4xx is the caller's mistake and
// the service behaved correctly.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		status := c.Writer.Status()
		if !span.IsRecording() || status < http.StatusBadRequest {
			return
		}
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
