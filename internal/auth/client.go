// Package auth is a client for the hosted phone OTP auth service (the
// /auth/v1 API of a Supabase project). It keeps the session persisted and
// reports every change on its change stream.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/350ops/walleybranch/internal/domain"
	"github.com/350ops/walleybranch/internal/session"
)

// ErrInvalidPhone is returned when a phone number normalizes to nothing.
var ErrInvalidPhone = errors.New("auth: invalid phone number")

// Error is an error payload returned by the auth service.
type Error struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s [%s]", e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Rejected reports whether the service refused the request itself, as opposed
// to failing to serve it.
func (e *Error) Rejected() bool {
	return e.Status >= 400 && e.Status < 500
}

// Client implements session.Authenticator.
type Client struct {
	baseURL   string
	apiKey    string
	http      *http.Client
	persister session.Persister
	logger    *slog.Logger
	secret    []byte
	skew      time.Duration
	nowFn     func() time.Time

	mu     sync.Mutex
	subs   map[int]chan session.Change
	nextID int
}

var _ session.Authenticator = (*Client)(nil)

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

// WithJWTSecret enables signature verification of issued access tokens.
func WithJWTSecret(secret string) Option {
	return func(c *Client) {
		c.secret = []byte(secret)
	}
}

// WithRefreshSkew sets how long before expiry a persisted session is refreshed.
func WithRefreshSkew(d time.Duration) Option {
	return func(c *Client) {
		c.skew = d
	}
}

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.nowFn = now
		}
	}
}

// New builds a client for the project at baseURL.
func New(baseURL, apiKey string, persister session.Persister, logger *slog.Logger, opts ...Option) *Client {
	if persister == nil {
		persister = &session.MemoryPersister{}
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		http:      &http.Client{Timeout: 15 * time.Second},
		persister: persister,
		logger:    logger.With("component", "auth"),
		skew:      30 * time.Second,
		nowFn:     time.Now,
		subs:      make(map[int]chan session.Change),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		ID    string `json:"id"`
		Phone string `json:"phone"`
	} `json:"user"`
}

type errorPayload struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorName        string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// SendOTP asks the service to text a one-time code to phone.
func (c *Client) SendOTP(ctx context.Context, phone string) error {
	phone = domain.NormalizePhone(phone)
	if phone == "" {
		return ErrInvalidPhone
	}
	return c.post(ctx, "send otp", "/auth/v1/otp", "", map[string]any{"phone": phone}, nil)
}

// VerifyOTP exchanges an SMS code for a session, persists it and reports
// SIGNED_IN.
func (c *Client) VerifyOTP(ctx context.Context, phone, code string) (*session.Session, error) {
	phone = domain.NormalizePhone(phone)
	if phone == "" {
		return nil, ErrInvalidPhone
	}
	var resp tokenResponse
	body := map[string]any{"type": "sms", "phone": phone, "token": strings.TrimSpace(code)}
	if err := c.post(ctx, "verify otp", "/auth/v1/verify", "", body, &resp); err != nil {
		return nil, err
	}
	sess, err := c.toSession(resp)
	if err != nil {
		return nil, fmt.Errorf("verify otp: %w", err)
	}
	if err := c.persister.Save(ctx, *sess); err != nil {
		return nil, err
	}
	c.logger.Info("signed in", "userId", sess.UserID)
	c.emit(session.EventSignedIn, sess)
	return sess, nil
}

// Refresh trades a refresh token for a new session, persists it and reports
// TOKEN_REFRESHED.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	var resp tokenResponse
	path := "/auth/v1/token?" + url.Values{"grant_type": {"refresh_token"}}.Encode()
	if err := c.post(ctx, "refresh session", path, "", map[string]any{"refresh_token": refreshToken}, &resp); err != nil {
		return nil, err
	}
	sess, err := c.toSession(resp)
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	if err := c.persister.Save(ctx, *sess); err != nil {
		return nil, err
	}
	c.emit(session.EventTokenRefreshed, sess)
	return sess, nil
}

// CurrentSession returns the persisted session, refreshed when it is about to
// expire, or nil when signed out. A refresh token the service rejects clears
// the persisted session.
func (c *Client) CurrentSession(ctx context.Context) (*session.Session, error) {
	sess, err := c.persister.Load(ctx)
	if err != nil || sess == nil {
		return nil, err
	}
	if !sess.Expired(c.nowFn(), c.skew) {
		return sess, nil
	}
	refreshed, err := c.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		var authErr *Error
		if errors.As(err, &authErr) && authErr.Rejected() {
			c.logger.Warn("persisted session rejected", "userId", sess.UserID, "error", err)
			return nil, c.persister.Clear(ctx)
		}
		return nil, err
	}
	return refreshed, nil
}

// SignOut revokes the session remotely, clears the persisted copy and reports
// SIGNED_OUT. The local session is cleared even when the remote call fails.
func (c *Client) SignOut(ctx context.Context) error {
	sess, err := c.persister.Load(ctx)
	if err != nil {
		c.logger.Warn("load session for sign out", "error", err)
	}

	var remoteErr error
	if sess != nil && sess.AccessToken != "" {
		remoteErr = c.post(ctx, "sign out", "/auth/v1/logout", sess.AccessToken, nil, nil)
		var authErr *Error
		if errors.As(remoteErr, &authErr) && authErr.Rejected() {
			remoteErr = nil
		}
	}
	if err := c.persister.Clear(ctx); err != nil {
		return err
	}
	c.emit(session.EventSignedOut, nil)
	return remoteErr
}

// Subscribe returns the change stream. Slow readers only see the latest change.
func (c *Client) Subscribe() (<-chan session.Change, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	ch := make(chan session.Change, 1)
	c.subs[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
	}
}

func (c *Client) emit(event session.Event, sess *session.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		change := session.Change{Event: event}
		if sess != nil {
			s := *sess
			change.Session = &s
		}
		select {
		case ch <- change:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- change
		}
	}
}

func (c *Client) toSession(resp tokenResponse) (*session.Session, error) {
	if resp.AccessToken == "" {
		return nil, errors.New("response has no access token")
	}
	claims, err := ParseClaims(resp.AccessToken, c.secret, c.nowFn)
	if err != nil {
		return nil, err
	}
	userID := resp.User.ID
	if userID == "" {
		userID = claims.Subject
	}
	if userID != claims.Subject {
		return nil, fmt.Errorf("token subject %q does not match user %q", claims.Subject, userID)
	}
	phone := resp.User.Phone
	if phone == "" {
		phone = claims.Phone
	}

	var expires time.Time
	switch {
	case resp.ExpiresAt > 0:
		expires = time.Unix(resp.ExpiresAt, 0).UTC()
	case claims.ExpiresAt != nil:
		expires = claims.ExpiresAt.Time.UTC()
	case resp.ExpiresIn > 0:
		expires = c.nowFn().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC()
	}

	return &session.Session{
		UserID:       userID,
		Phone:        domain.NormalizePhone(phone),
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    expires,
	}, nil
}

func (c *Client) post(ctx context.Context, op, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", op, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(op, resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode body: %w", op, err)
	}
	return nil
}

func decodeError(op string, status int, raw []byte) error {
	e := &Error{Op: op, Status: status}
	var p errorPayload
	if err := json.Unmarshal(raw, &p); err == nil {
		e.Code = firstNonEmpty(p.ErrorCode, p.ErrorName)
		if e.Code == "" {
			if s, ok := p.Code.(string); ok {
				e.Code = s
			}
		}
		e.Message = firstNonEmpty(p.Msg, p.Message, p.ErrorDescription)
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(raw))
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
