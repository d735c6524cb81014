package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/350ops/walleybranch/internal/backend"
	"github.com/350ops/walleybranch/internal/domain"
)

type staticToken string

func (t staticToken) AccessToken() string { return string(t) }

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "anon-key", staticToken("user-jwt"), WithHTTPClient(srv.Client()))
}

func TestListCardsSendsScopedOrderedQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/cards" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("user_id") != "eq.user-1" || q.Get("order") != "created_at.desc" || q.Get("select") != "*" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("apikey") != "anon-key" || r.Header.Get("Authorization") != "Bearer user-jwt" {
			t.Errorf("unexpected auth headers %v", r.Header)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id":"c1","user_id":"user-1","card_number_last4":"4242","expiry_month":3,"expiry_year":2030,"card_brand":"visa","is_default":true,"created_at":"2024-05-01T10:00:00Z"}]`)
	})

	cards, err := client.ListCards(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(cards) != 1 || cards[0].Last4 != "4242" || cards[0].Brand != "visa" || !cards[0].IsDefault {
		t.Fatalf("unexpected cards %+v", cards)
	}
}

func TestSingletonNoRowsMapsToSentinel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != objectMediaType {
			t.Errorf("expected object accept header, got %q", r.Header.Get("Accept"))
		}
		w.WriteHeader(http.StatusNotAcceptable)
		_, _ = io.WriteString(w, `{"code":"PGRST116","details":"The result contains 0 rows","message":"JSON object requested, multiple (or no) rows returned"}`)
	})

	if _, err := client.FetchAccount(context.Background(), "user-1"); !errors.Is(err, backend.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestErrorPayloadBecomesRemoteError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"code":"23505","message":"duplicate key value violates unique constraint","details":"Key (id) already exists.","hint":null}`)
	})

	_, err := client.InsertRecipient(context.Background(), "user-1", domain.NewRecipient{Name: "Grace"})
	var remote *backend.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Status != http.StatusConflict || remote.Code != "23505" || remote.Op != "insert recipient" {
		t.Fatalf("unexpected remote error %+v", remote)
	}
}

func TestNonJSONErrorKeepsBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	})

	_, err := client.ListNotifications(context.Background(), "user-1")
	var remote *backend.RemoteError
	if !errors.As(err, &remote) || remote.Message != "upstream unavailable" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestInsertCardPostsRepresentation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Prefer") != "return=representation" {
			t.Errorf("unexpected Prefer %q", r.Header.Get("Prefer"))
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["user_id"] != "user-1" || body["card_number_last4"] != "1881" || body["is_default"] != true {
			t.Errorf("unexpected body %v", body)
		}
		_, _ = io.WriteString(w, `{"id":"c9","user_id":"user-1","card_number_last4":"1881","expiry_month":1,"expiry_year":2031,"is_default":true}`)
	})

	card, err := client.InsertCard(context.Background(), "user-1", domain.NewCard{Last4: "1881", ExpiryMonth: 1, ExpiryYear: 2031, IsDefault: true})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if card.ID != "c9" {
		t.Fatalf("unexpected card %+v", card)
	}
}

func TestUpsertAccountMergesOnUserID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("on_conflict") != "user_id" {
			t.Errorf("unexpected on_conflict %q", r.URL.Query().Get("on_conflict"))
		}
		if !strings.Contains(r.Header.Get("Prefer"), "resolution=merge-duplicates") {
			t.Errorf("unexpected Prefer %q", r.Header.Get("Prefer"))
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["balance"] != "12.5" || body["currency"] != "USD" || body["user_id"] != "user-1" {
			t.Errorf("unexpected body %v", body)
		}
		_, _ = io.WriteString(w, `{"id":"a1","user_id":"user-1","balance":12.5,"available_balance":12.5,"currency":"USD"}`)
	})

	a, err := client.UpsertAccount(context.Background(), "user-1", domain.AccountUpsert{
		Balance:          decimal.RequireFromString("12.5"),
		AvailableBalance: decimal.RequireFromString("12.5"),
		Currency:         "USD",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !a.Balance.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected account %+v", a)
	}
}

func TestMarkNotificationReadPatchesOneRow(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.Method != http.MethodPatch || q.Get("id") != "eq.n-1" || q.Get("user_id") != "eq.user-1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.MarkNotificationRead(context.Background(), "user-1", "n-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestAnonKeyUsedWithoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer anon-key" {
			t.Errorf("expected anon bearer, got %q", r.Header.Get("Authorization"))
		}
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	client := New(srv.URL, "anon-key", staticToken(""))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
