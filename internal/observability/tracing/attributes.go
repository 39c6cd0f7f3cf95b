package tracing

import (
	"context"
	"errors"

	ierr "github.com/smallbiznis/autotrade/internal/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

var blockedAttributeKeys = map[attribute.Key]struct{}{
	"customer.email":    {},
	"customer.phone":    {},
	"db.password":       {},
	"http.request.body": {},
}

// SafeAttributes drops attributes that could carry customer data or credentials.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attr.Key]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError returns an error whose message has been scrubbed of connection strings.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(ierr.Sanitize(err.Error()))
}

func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
