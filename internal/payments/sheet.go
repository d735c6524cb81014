// Package payments prepares Stripe payment sheets and applies wallet top-ups.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const (
	// DefaultAmountCents is charged when a sheet request names no amount.
	DefaultAmountCents int64 = 5000
	stripeAPIVersion         = "2022-11-15"
)

// SheetParams is what a mobile payment sheet needs to present a checkout.
type SheetParams struct {
	PaymentIntent  string `json:"paymentIntent"`
	EphemeralKey   string `json:"ephemeralKey"`
	Customer       string `json:"customer"`
	PublishableKey string `json:"publishableKey,omitempty"`
}

// SheetProvider creates payment sheet parameters for an amount in cents.
type SheetProvider interface {
	CreateSheet(ctx context.Context, amountCents int64) (SheetParams, error)
}

type customerAPI interface {
	New(params *stripe.CustomerParams) (*stripe.Customer, error)
}

type ephemeralKeyAPI interface {
	New(params *stripe.EphemeralKeyParams) (*stripe.EphemeralKey, error)
}

type paymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeSheets creates a fresh customer, an ephemeral key for it and a
// payment intent for every sheet.
type StripeSheets struct {
	customers      customerAPI
	ephemeralKeys  ephemeralKeyAPI
	paymentIntents paymentIntentAPI
	publishableKey string
	currency       string
}

var _ SheetProvider = (*StripeSheets)(nil)

// NewStripeSheets wraps a Stripe API client.
func NewStripeSheets(api *client.API, publishableKey string) *StripeSheets {
	return &StripeSheets{
		customers:      api.Customers,
		ephemeralKeys:  api.EphemeralKeys,
		paymentIntents: api.PaymentIntents,
		publishableKey: publishableKey,
		currency:       string(stripe.CurrencyUSD),
	}
}

func (s *StripeSheets) CreateSheet(ctx context.Context, amountCents int64) (SheetParams, error) {
	if amountCents <= 0 {
		amountCents = DefaultAmountCents
	}

	customerParams := &stripe.CustomerParams{}
	customerParams.Context = ctx
	customer, err := s.customers.New(customerParams)
	if err != nil {
		return SheetParams{}, fmt.Errorf("create customer: %w", err)
	}

	keyParams := &stripe.EphemeralKeyParams{
		Customer:      stripe.String(customer.ID),
		StripeVersion: stripe.String(stripeAPIVersion),
	}
	keyParams.Context = ctx
	key, err := s.ephemeralKeys.New(keyParams)
	if err != nil {
		return SheetParams{}, fmt.Errorf("create ephemeral key: %w", err)
	}

	intentParams := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(s.currency),
		Customer: stripe.String(customer.ID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	intentParams.Context = ctx
	intent, err := s.paymentIntents.New(intentParams)
	if err != nil {
		return SheetParams{}, fmt.Errorf("create payment intent: %w", err)
	}

	return SheetParams{
		PaymentIntent:  intent.ClientSecret,
		EphemeralKey:   key.Secret,
		Customer:       customer.ID,
		PublishableKey: s.publishableKey,
	}, nil
}

type sheetRequest struct {
	Amount int64 `json:"amount"`
}

// NewSheetHandler serves POST requests with an optional {"amount": cents}
// body. Failures are reported as 400 {"error": message}.
func NewSheetHandler(provider SheetProvider, logger *slog.Logger) http.Handler {
	logger = logger.With("component", "payment-sheet")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}

		var req sheetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		params, err := provider.CreateSheet(r.Context(), req.Amount)
		if err != nil {
			logger.Error("create payment sheet", "error", err)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": stripeMessage(err)})
			return
		}
		writeJSON(w, http.StatusOK, params)
	})
}

func stripeMessage(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return stripeErr.Msg
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// TokenSource yields the bearer token of the signed-in user.
type TokenSource interface {
	AccessToken() string
}

// SheetClient calls a deployed payment-sheet function.
type SheetClient struct {
	endpoint string
	apiKey   string
	tokens   TokenSource
	http     *http.Client
}

var _ SheetProvider = (*SheetClient)(nil)

// NewSheetClient targets endpoint, e.g. https://<project>/functions/v1/payment-sheet.
func NewSheetClient(endpoint, apiKey string, tokens TokenSource, hc *http.Client) *SheetClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &SheetClient{endpoint: endpoint, apiKey: apiKey, tokens: tokens, http: hc}
}

func (c *SheetClient) CreateSheet(ctx context.Context, amountCents int64) (SheetParams, error) {
	payload, err := json.Marshal(sheetRequest{Amount: amountCents})
	if err != nil {
		return SheetParams{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return SheetParams{}, fmt.Errorf("payment sheet: %w", err)
	}
	token := c.apiKey
	if c.tokens != nil {
		if t := c.tokens.AccessToken(); t != "" {
			token = t
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return SheetParams{}, fmt.Errorf("payment sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
		return SheetParams{}, fmt.Errorf("payment sheet: %s", body.Error)
	}

	var params SheetParams
	if err := json.NewDecoder(resp.Body).Decode(&params); err != nil {
		return SheetParams{}, fmt.Errorf("payment sheet: decode body: %w", err)
	}
	return params, nil
}
