package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubCustomers struct{ err error }

func (s stubCustomers) New(*stripe.CustomerParams) (*stripe.Customer, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &stripe.Customer{ID: "cus_123"}, nil
}

type stubKeys struct{ got *stripe.EphemeralKeyParams }

func (s *stubKeys) New(p *stripe.EphemeralKeyParams) (*stripe.EphemeralKey, error) {
	s.got = p
	return &stripe.EphemeralKey{Secret: "ek_secret"}, nil
}

type stubIntents struct{ got *stripe.PaymentIntentParams }

func (s *stubIntents) New(p *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	s.got = p
	return &stripe.PaymentIntent{ClientSecret: "pi_secret"}, nil
}

func newStubSheets(customerErr error) (*StripeSheets, *stubKeys, *stubIntents) {
	keys := &stubKeys{}
	intents := &stubIntents{}
	return &StripeSheets{
		customers:      stubCustomers{err: customerErr},
		ephemeralKeys:  keys,
		paymentIntents: intents,
		publishableKey: "pk_test",
		currency:       string(stripe.CurrencyUSD),
	}, keys, intents
}

func TestCreateSheetChainsCustomerKeyAndIntent(t *testing.T) {
	sheets, keys, intents := newStubSheets(nil)

	params, err := sheets.CreateSheet(context.Background(), 0)
	if err != nil {
		t.Fatalf("create sheet: %v", err)
	}
	want := SheetParams{PaymentIntent: "pi_secret", EphemeralKey: "ek_secret", Customer: "cus_123", PublishableKey: "pk_test"}
	if params != want {
		t.Fatalf("unexpected params %+v", params)
	}
	if *keys.got.Customer != "cus_123" || *keys.got.StripeVersion != "2022-11-15" {
		t.Fatalf("unexpected ephemeral key params %+v", keys.got)
	}
	if *intents.got.Amount != DefaultAmountCents || *intents.got.Currency != "usd" || *intents.got.Customer != "cus_123" {
		t.Fatalf("unexpected intent params %+v", intents.got)
	}
	if !*intents.got.AutomaticPaymentMethods.Enabled {
		t.Fatalf("expected automatic payment methods")
	}
}

func TestSheetHandlerUsesRequestedAmount(t *testing.T) {
	sheets, _, intents := newStubSheets(nil)
	handler := NewSheetHandler(sheets, quietLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payment-sheet", strings.NewReader(`{"amount":500}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if *intents.got.Amount != 500 {
		t.Fatalf("expected amount 500, got %d", *intents.got.Amount)
	}
	var body SheetParams
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Customer != "cus_123" || body.PublishableKey != "pk_test" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestSheetHandlerEmptyBodyDefaults(t *testing.T) {
	sheets, _, intents := newStubSheets(nil)
	rec := httptest.NewRecorder()
	NewSheetHandler(sheets, quietLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payment-sheet", nil))

	if rec.Code != http.StatusOK || *intents.got.Amount != DefaultAmountCents {
		t.Fatalf("expected default amount, got %d %+v", rec.Code, intents.got)
	}
}

func TestSheetHandlerReportsStripeErrors(t *testing.T) {
	sheets, _, _ := newStubSheets(&stripe.Error{Msg: "Invalid API Key provided"})
	rec := httptest.NewRecorder()
	NewSheetHandler(sheets, quietLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payment-sheet", strings.NewReader(`{}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "Invalid API Key provided" {
		t.Fatalf("unexpected error body %v", body)
	}
}

type staticToken string

func (s staticToken) AccessToken() string { return string(s) }

func TestSheetClientCallsFunctionWithSessionToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer user-token" {
			t.Errorf("unexpected authorization %q", got)
		}
		var req sheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Amount != TopUpCents {
			t.Errorf("unexpected amount %d", req.Amount)
		}
		writeJSON(w, http.StatusOK, SheetParams{PaymentIntent: "pi", EphemeralKey: "ek", Customer: "cus"})
	}))
	defer srv.Close()

	client := NewSheetClient(srv.URL, "anon", staticToken("user-token"), srv.Client())
	params, err := client.CreateSheet(context.Background(), TopUpCents)
	if err != nil {
		t.Fatalf("create sheet: %v", err)
	}
	if params.PaymentIntent != "pi" || params.Customer != "cus" {
		t.Fatalf("unexpected params %+v", params)
	}
}

func TestSheetClientSurfacesFunctionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No such customer"})
	}))
	defer srv.Close()

	_, err := NewSheetClient(srv.URL, "anon", nil, srv.Client()).CreateSheet(context.Background(), 500)
	if err == nil || !strings.Contains(err.Error(), "No such customer") {
		t.Fatalf("expected function error, got %v", err)
	}
}

type stubBalances struct {
	balance decimal.Decimal
	known   bool
	setErr  error
	set     []decimal.Decimal
}

func (s *stubBalances) Balance() (decimal.Decimal, bool) { return s.balance, s.known }

func (s *stubBalances) SetBalance(_ context.Context, amount decimal.Decimal) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.set = append(s.set, amount)
	s.balance = amount
	return nil
}

type fixedSheets struct{ cents int64 }

func (f *fixedSheets) CreateSheet(_ context.Context, cents int64) (SheetParams, error) {
	f.cents = cents
	return SheetParams{PaymentIntent: "pi"}, nil
}

func TestTopUpAddsFiveUnits(t *testing.T) {
	sheets := &fixedSheets{}
	balances := &stubBalances{balance: decimal.RequireFromString("325.00"), known: true}
	topUp := NewTopUp(sheets, balances)

	if _, err := topUp.Prepare(context.Background()); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if sheets.cents != 500 {
		t.Fatalf("expected 500 cents requested, got %d", sheets.cents)
	}

	next, err := topUp.Complete(context.Background())
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !next.Equal(decimal.RequireFromString("330.00")) || len(balances.set) != 1 {
		t.Fatalf("expected 330.00 written once, got %s %v", next, balances.set)
	}
}

func TestTopUpWithoutAccount(t *testing.T) {
	topUp := NewTopUp(&fixedSheets{}, &stubBalances{})
	if _, err := topUp.Complete(context.Background()); !errors.Is(err, ErrNoAccount) {
		t.Fatalf("expected ErrNoAccount, got %v", err)
	}
}

func TestTopUpPropagatesWriteFailure(t *testing.T) {
	boom := errors.New("write failed")
	topUp := NewTopUp(&fixedSheets{}, &stubBalances{known: true, setErr: boom})
	if _, err := topUp.Complete(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
}
