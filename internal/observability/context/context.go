// Package context carries request correlation values between the HTTP
// middleware, the loggers and the tracer.
package context

import "context"

type key int

const (
	requestIDKey key = iota
	invoiceIDKey
	paymentIDKey
)

// WithRequestID stores the request identifier for log and trace correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	return get(ctx, requestIDKey)
}

// WithInvoiceID tags the request with the invoice it operates on.
func WithInvoiceID(ctx context.Context, invoiceID string) context.Context {
	return with(ctx, invoiceIDKey, invoiceID)
}

func InvoiceIDFromContext(ctx context.Context) string {
	return get(ctx, invoiceIDKey)
}

// WithPaymentID tags the request with the payment it operates on.
func WithPaymentID(ctx context.Context, paymentID string) context.Context {
	return with(ctx, paymentIDKey, paymentID)
}

func PaymentIDFromContext(ctx context.Context) string {
	return get(ctx, paymentIDKey)
}

func with(ctx context.Context, k key, v string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, k, v)
}

func get(ctx context.Context, k key) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(k).(string)
	return v
}
