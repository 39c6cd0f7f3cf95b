package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []error{
		gorm.ErrDuplicatedKey,
		fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey),
		errors.New(`ERROR: duplicate key value violates unique constraint "ux_invoices_invoice_number" (SQLSTATE 23505)`),
		errors.New("Error 1062 (23000): Duplicate entry 'INV-2026-0001'"),
		errors.New("UNIQUE constraint failed: invoices.invoice_number"),
	}
	for _, err := range cases {
		if !IsDuplicateKeyErr(err) {
			t.Fatalf("expected duplicate key for %q", err)
		}
	}
	if IsDuplicateKeyErr(errors.New("record not found")) {
		t.Fatalf("record not found is not a duplicate")
	}
	if IsDuplicateKeyErr(nil) {
		t.Fatalf("nil is not a duplicate")
	}
}

func TestIsTransientErr(t *testing.T) {
	if !IsTransientErr(errors.New("dial tcp 10.0.0.4:5432: connect: connection refused")) {
		t.Fatalf("expected connection refused to be transient")
	}
	if !IsTransientErr(errors.New("ERROR: could not serialize access due to concurrent update (SQLSTATE 40001)")) {
		t.Fatalf("expected serialization failure to be transient")
	}
	if IsTransientErr(context.Canceled) {
		t.Fatalf("context cancellation must not be retried")
	}
	if IsTransientErr(errors.New("UNIQUE constraint failed: customers.email")) {
		t.Fatalf("constraint violations are not transient")
	}
}
