package tracing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/autotrade/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware starts a server span per request named after the matched
// route, e.g. "POST /api/invoices/:id/payments/quick".
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("autotrade/http")
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}

		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
				attribute.String("request_id", obscontext.RequestIDFromContext(ctx)),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		// resource tags are set by route middleware after this span started
		reqCtx := c.Request.Context()
		attrs := []attribute.KeyValue{attribute.Int("http.status_code", status)}
		if id := obscontext.InvoiceIDFromContext(reqCtx); id != "" {
			attrs = append(attrs, attribute.String("autotrade.invoice_id", id))
		}
		if id := obscontext.PaymentIDFromContext(reqCtx); id != "" {
			attrs = append(attrs, attribute.String("autotrade.payment_id", id))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				span.RecordError(SafeError(lastErr.Err))
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
