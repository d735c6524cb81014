package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"+1 (555) 123-4567": "+15551234567",
		"0044 20 7946 0958": "+442079460958",
		"15551234567":       "+15551234567",
		"   ":               "",
	}
	for in, want := range cases {
		if got := NormalizePhone(in); got != want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewRecipientNormalize(t *testing.T) {
	in := NewRecipient{Name: "  Jane   Doe ", Email: " Jane@Example.COM ", Phone: "+1 555 000 1111"}
	in.Normalize()

	if in.Name != "Jane Doe" {
		t.Errorf("name = %q", in.Name)
	}
	if in.Email != "jane@example.com" {
		t.Errorf("email = %q", in.Email)
	}
	if in.Phone != "+15550001111" {
		t.Errorf("phone = %q", in.Phone)
	}
	if err := Validate(in); err != nil {
		t.Fatalf("expected normalized recipient to validate, got %v", err)
	}
}

func TestValidateNewCard(t *testing.T) {
	err := Validate(NewCard{Last4: "12a4", ExpiryMonth: 13, ExpiryYear: 2030})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := verr.Fields["Last4"]; !ok {
		t.Errorf("expected Last4 to be reported, got %v", verr.Fields)
	}
	if _, ok := verr.Fields["ExpiryMonth"]; !ok {
		t.Errorf("expected ExpiryMonth to be reported, got %v", verr.Fields)
	}

	if err := Validate(NewCard{Last4: "4242", ExpiryMonth: 4, ExpiryYear: 2030}); err != nil {
		t.Fatalf("expected valid card, got %v", err)
	}
}

func TestFilterValidDropsBadRows(t *testing.T) {
	now := time.Now()
	rows := []Transaction{
		{ID: "tx-1", UserID: "u", MerchantName: "Coffee", Amount: decimal.NewFromInt(-4), CreatedAt: now},
		{ID: "", UserID: "u", MerchantName: "Broken", CreatedAt: now},
		{ID: "tx-3", UserID: "u", MerchantName: "Salary", Amount: decimal.NewFromInt(2000), CreatedAt: now},
	}

	kept, dropped := FilterValid(rows)
	if len(kept) != 2 || len(dropped) != 1 {
		t.Fatalf("expected 2 kept and 1 dropped, got %d and %d", len(kept), len(dropped))
	}
	if kept[0].ID != "tx-1" || kept[1].ID != "tx-3" {
		t.Fatalf("order not preserved: %+v", kept)
	}
}

func TestProfileUpdateColumns(t *testing.T) {
	name := "Jane"
	cols := ProfileUpdate{FullName: &name}.Columns()
	if len(cols) != 1 || cols["full_name"] != "Jane" {
		t.Fatalf("unexpected columns %v", cols)
	}
}
