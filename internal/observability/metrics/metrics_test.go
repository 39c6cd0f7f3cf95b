package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("currency", "AED"),
		attribute.String("invoice_id", "456"),
		attribute.String("method", "cash"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "currency" && attrs[1].Key != "currency" {
		t.Fatalf("expected currency to be retained")
	}
	if attrs[0].Key != "method" && attrs[1].Key != "method" {
		t.Fatalf("expected method to be retained")
	}
}

func TestStatusTransitionsAreCounted(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{ServiceName: "autotrade-test"}, provider)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	ctx := context.Background()
	m.RecordStatusTransition(ctx, "sent", "partially_paid")
	m.RecordStatusTransition(ctx, "partially_paid", "fully_paid")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "autotrade_invoice_status_transitions_total" {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", md.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	if total != 2 {
		t.Fatalf("expected 2 transitions, got %d", total)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordInvoiceCreated(context.Background(), "AED", "manual")
	m.RecordPayment(context.Background(), "cash", "AED", "payment")
}
