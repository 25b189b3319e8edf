package validation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRequired(t *testing.T) {
	v := make(Violations)
	Required("name", "  ", v)
	if v["name"] != "required" {
		t.Fatalf("expected required violation, got %#v", v)
	}
	v = make(Violations)
	Required("name", "Ali", v)
	if !v.Empty() {
		t.Fatalf("expected no violations, got %#v", v)
	}
}

func TestEmail(t *testing.T) {
	v := make(Violations)
	Email("email", "not-an-email", v)
	if v["email"] != "invalid_email" {
		t.Fatalf("expected invalid_email, got %#v", v)
	}
	v = make(Violations)
	Email("email", "ali@example.tn", v)
	if !v.Empty() {
		t.Fatalf("valid email rejected: %#v", v)
	}
}

func TestPositiveAmount(t *testing.T) {
	v := make(Violations)
	PositiveAmount("amount", decimal.Zero, v)
	if v["amount"] != "must_be_positive" {
		t.Fatalf("zero should be rejected: %#v", v)
	}
	v = make(Violations)
	PositiveAmount("amount", decimal.RequireFromString("150.000"), v)
	if !v.Empty() {
		t.Fatalf("positive amount rejected: %#v", v)
	}
}

func TestVehicleYear(t *testing.T) {
	v := make(Violations)
	VehicleYear("year", 1900, v)
	if v["year"] != "out_of_range" {
		t.Fatalf("1900 should be out of range")
	}
	v = make(Violations)
	VehicleYear("year", time.Now().Year()+2, v)
	if v["year"] != "out_of_range" {
		t.Fatalf("far future year should be out of range")
	}
	v = make(Violations)
	VehicleYear("year", time.Now().Year(), v)
	if !v.Empty() {
		t.Fatalf("current year rejected: %#v", v)
	}
}

func TestOneOf(t *testing.T) {
	allowed := []string{"cash", "credit_card", "bank_transfer"}
	v := make(Violations)
	OneOf("payment_method", "cheque", allowed, v)
	if v["payment_method"] != "invalid_value" {
		t.Fatalf("expected invalid_value, got %#v", v)
	}
	v = make(Violations)
	OneOf("payment_method", "cash", allowed, v)
	OneOf("payment_method_empty", "", allowed, v)
	if !v.Empty() {
		t.Fatalf("unexpected violations: %#v", v)
	}
}
