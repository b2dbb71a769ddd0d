package tracing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/seqdesk/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Gin context keys handlers set when a request works on one document.
const (
	DocumentKindKey = "document_kind"
	DocumentIDKey   = "document_id"
)

const tracerName = "github.com/smallbiznis/seqdesk/internal/server"

// GinMiddleware opens a server span per request and renames it to the
// matched route once the handler chain has run.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	return func(c *gin.Context) {
		req := c.Request
		ctx := ExtractContext(req.Context(), propagation.HeaderCarrier(req.Header))
		ctx, span := tracer.Start(ctx, req.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if id := obscontext.RequestIDFromContext(ctx); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}
		c.Request = req.WithContext(ctx)

		c.Next()

		route := RouteOf(c)
		status := c.Writer.Status()
		span.SetName(req.Method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", req.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		}
		if kind := c.GetString(DocumentKindKey); kind != "" {
			attrs = append(attrs,
				attribute.String("document.kind", kind),
				attribute.String("document.id", c.GetString(DocumentIDKey)),
			)
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		if status < http.StatusInternalServerError {
			return
		}
		span.SetStatus(codes.Error, http.StatusText(status))
		if last := c.Errors.Last(); last != nil {
			if err := SafeError(last.Err); err != nil {
				span.RecordError(err)
			}
		}
	}
}

// RouteOf returns the matched route template, or "unmatched" for 404s.
func RouteOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
