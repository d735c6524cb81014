// Package postgrest talks to a hosted PostgREST endpoint (the /rest/v1 API
// of a Supabase project).
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/350ops/walleybranch/internal/backend"
	"github.com/350ops/walleybranch/internal/domain"
)

const (
	objectMediaType = "application/vnd.pgrst.object+json"
	codeNoRows      = "PGRST116"
)

// TokenSource yields the bearer token of the signed-in user. An empty token
// falls back to the anon key.
type TokenSource interface {
	AccessToken() string
}

// Client implements backend.Source over PostgREST.
type Client struct {
	baseURL string
	apiKey  string
	tokens  TokenSource
	http    *http.Client
}

var (
	_ backend.Source             = (*Client)(nil)
	_ backend.NotificationWriter = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New builds a client for the project at baseURL authenticated with the
// project's anon key.
func New(baseURL, apiKey string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		tokens:  tokens,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	op     string
	method string
	table  string
	query  url.Values
	prefer []string
	single bool
	body   any
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	endpoint := c.baseURL + "/rest/v1/" + r.table
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", r.op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, body)
	if err != nil {
		return fmt.Errorf("%s: %w", r.op, err)
	}
	req.Header.Set("apikey", c.apiKey)
	token := c.apiKey
	if c.tokens != nil {
		if t := c.tokens.AccessToken(); t != "" {
			token = t
		}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.single {
		req.Header.Set("Accept", objectMediaType)
	} else {
		req.Header.Set("Accept", "application/json")
	}
	if len(r.prefer) > 0 {
		req.Header.Set("Prefer", strings.Join(r.prefer, ","))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", r.op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", r.op, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(r.op, resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode body: %w", r.op, err)
	}
	return nil
}

func decodeError(op string, status int, raw []byte) error {
	var payload errorPayload
	if err := json.Unmarshal(raw, &payload); err != nil || (payload.Code == "" && payload.Message == "") {
		payload.Message = strings.TrimSpace(string(raw))
		if payload.Message == "" {
			payload.Message = http.StatusText(status)
		}
	}
	if payload.Code == codeNoRows {
		return backend.ErrNoRows
	}
	details := payload.Details
	if payload.Hint != "" {
		details = strings.TrimSpace(details + " " + payload.Hint)
	}
	return &backend.RemoteError{
		Op:      op,
		Status:  status,
		Code:    payload.Code,
		Message: payload.Message,
		Details: details,
	}
}

func eq(v string) string { return "eq." + v }

func byUser(userID string) url.Values {
	return url.Values{"select": {"*"}, "user_id": {eq(userID)}}
}

func newestFirst(userID string) url.Values {
	q := byUser(userID)
	q.Set("order", "created_at.desc")
	return q
}

func (c *Client) FetchProfile(ctx context.Context, userID string) (domain.Profile, error) {
	var p domain.Profile
	err := c.do(ctx, request{
		op:     "fetch profile",
		method: http.MethodGet,
		table:  "profiles",
		query:  url.Values{"select": {"*"}, "id": {eq(userID)}},
		single: true,
	}, &p)
	return p, err
}

func (c *Client) ListCards(ctx context.Context, userID string) ([]domain.Card, error) {
	var rows []domain.Card
	err := c.do(ctx, request{op: "list cards", method: http.MethodGet, table: "cards", query: newestFirst(userID)}, &rows)
	return rows, err
}

func (c *Client) ListRecipients(ctx context.Context, userID string) ([]domain.Recipient, error) {
	var rows []domain.Recipient
	err := c.do(ctx, request{op: "list recipients", method: http.MethodGet, table: "recipients", query: newestFirst(userID)}, &rows)
	return rows, err
}

func (c *Client) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	var rows []domain.Transaction
	err := c.do(ctx, request{op: "list transactions", method: http.MethodGet, table: "transactions", query: newestFirst(userID)}, &rows)
	return rows, err
}

func (c *Client) FetchUserSettings(ctx context.Context, userID string) (domain.UserSettings, error) {
	var s domain.UserSettings
	err := c.do(ctx, request{op: "fetch user settings", method: http.MethodGet, table: "user_settings", query: byUser(userID), single: true}, &s)
	return s, err
}

func (c *Client) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	var rows []domain.Notification
	err := c.do(ctx, request{op: "list notifications", method: http.MethodGet, table: "notifications", query: newestFirst(userID)}, &rows)
	return rows, err
}

func (c *Client) FetchAccount(ctx context.Context, userID string) (domain.Account, error) {
	var a domain.Account
	err := c.do(ctx, request{op: "fetch account", method: http.MethodGet, table: "accounts", query: byUser(userID), single: true}, &a)
	return a, err
}

func (c *Client) ClearDefaultCards(ctx context.Context, userID string) error {
	return c.do(ctx, request{
		op:     "clear default cards",
		method: http.MethodPatch,
		table:  "cards",
		query:  url.Values{"user_id": {eq(userID)}, "is_default": {"eq.true"}},
		prefer: []string{"return=minimal"},
		body:   map[string]any{"is_default": false},
	}, nil)
}

func (c *Client) insert(ctx context.Context, op, table string, body, out any) error {
	return c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		table:  table,
		query:  url.Values{"select": {"*"}},
		prefer: []string{"return=representation"},
		single: true,
		body:   body,
	}, out)
}

func (c *Client) upsert(ctx context.Context, op, table, conflict string, body, out any) error {
	return c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		table:  table,
		query:  url.Values{"select": {"*"}, "on_conflict": {conflict}},
		prefer: []string{"resolution=merge-duplicates", "return=representation"},
		single: true,
		body:   body,
	}, out)
}

func (c *Client) InsertCard(ctx context.Context, userID string, in domain.NewCard) (domain.Card, error) {
	var card domain.Card
	body := struct {
		UserID string `json:"user_id"`
		domain.NewCard
	}{userID, in}
	err := c.insert(ctx, "insert card", "cards", body, &card)
	return card, err
}

func (c *Client) InsertRecipient(ctx context.Context, userID string, in domain.NewRecipient) (domain.Recipient, error) {
	var r domain.Recipient
	body := struct {
		UserID string `json:"user_id"`
		domain.NewRecipient
	}{userID, in}
	err := c.insert(ctx, "insert recipient", "recipients", body, &r)
	return r, err
}

func (c *Client) InsertTransaction(ctx context.Context, userID string, in domain.NewTransaction) (domain.Transaction, error) {
	var tx domain.Transaction
	body := struct {
		UserID string `json:"user_id"`
		domain.NewTransaction
	}{userID, in}
	err := c.insert(ctx, "insert transaction", "transactions", body, &tx)
	return tx, err
}

func (c *Client) UpsertProfile(ctx context.Context, userID string, in domain.ProfileUpdate) (domain.Profile, error) {
	body := in.Columns()
	body["id"] = userID
	body["updated_at"] = time.Now().UTC()
	var p domain.Profile
	err := c.upsert(ctx, "upsert profile", "profiles", "id", body, &p)
	return p, err
}

func (c *Client) UpsertUserSettings(ctx context.Context, userID string, in domain.UserSettingsUpdate) (domain.UserSettings, error) {
	body := in.Columns()
	body["user_id"] = userID
	body["updated_at"] = time.Now().UTC()
	var s domain.UserSettings
	err := c.upsert(ctx, "upsert user settings", "user_settings", "user_id", body, &s)
	return s, err
}

func (c *Client) UpsertAccount(ctx context.Context, userID string, in domain.AccountUpsert) (domain.Account, error) {
	body := struct {
		UserID    string    `json:"user_id"`
		UpdatedAt time.Time `json:"updated_at"`
		domain.AccountUpsert
	}{userID, time.Now().UTC(), in}
	var a domain.Account
	err := c.upsert(ctx, "upsert account", "accounts", "user_id", body, &a)
	return a, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	return c.do(ctx, request{
		op:     "mark notification read",
		method: http.MethodPatch,
		table:  "notifications",
		query:  url.Values{"user_id": {eq(userID)}, "id": {eq(notificationID)}},
		prefer: []string{"return=minimal"},
		body:   map[string]any{"read": true},
	}, nil)
}

// InsertNotification requires a service-role key; row level security
// rejects it for ordinary users.
func (c *Client) InsertNotification(ctx context.Context, userID string, n domain.Notification) (domain.Notification, error) {
	body := map[string]any{
		"user_id": userID,
		"title":   n.Title,
		"body":    n.Body,
		"type":    n.Type,
		"read":    n.Read,
	}
	if n.ID != "" {
		body["id"] = n.ID
	}
	if !n.CreatedAt.IsZero() {
		body["created_at"] = n.CreatedAt.UTC()
	}
	var out domain.Notification
	err := c.insert(ctx, "insert notification", "notifications", body, &out)
	return out, err
}

// Ping requests the OpenAPI root, which only needs the anon key.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, request{op: "ping", method: http.MethodGet}, nil)
}
