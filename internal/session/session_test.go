package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeAuth struct {
	probe    *Session
	probeErr error
	changes  chan Change
	signOuts int
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{changes: make(chan Change, 8)}
}

func (f *fakeAuth) CurrentSession(context.Context) (*Session, error) {
	return f.probe, f.probeErr
}

func (f *fakeAuth) Subscribe() (<-chan Change, func()) {
	return f.changes, func() {}
}

func (f *fakeAuth) SignOut(context.Context) error {
	f.signOuts++
	f.changes <- Change{Event: EventSignedOut}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func receive(t *testing.T, ch <-chan State) State {
	t.Helper()
	select {
	case st := <-ch:
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session state")
		return State{}
	}
}

func TestProviderProbeFailureResolvesToSignedOut(t *testing.T) {
	auth := newFakeAuth()
	auth.probeErr = errors.New("network down")
	p := NewProvider(auth, discardLogger())
	states, cancelSub := p.Subscribe()
	defer cancelSub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	st := receive(t, states)
	if st.Loading || st.Present() {
		t.Fatalf("expected loaded signed-out state, got %+v", st)
	}
	if p.Current().Loading {
		t.Fatal("provider still loading after failed probe")
	}
}

func TestProviderEmitsOnIdentityChangesOnly(t *testing.T) {
	auth := newFakeAuth()
	auth.probe = &Session{UserID: "user-1", AccessToken: "t1"}
	p := NewProvider(auth, discardLogger())
	states, cancelSub := p.Subscribe()
	defer cancelSub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	if st := receive(t, states); st.Session == nil || st.Session.UserID != "user-1" {
		t.Fatalf("expected initial user-1 state, got %+v", st)
	}

	auth.changes <- Change{Event: EventTokenRefreshed, Session: &Session{UserID: "user-1", AccessToken: "t2"}}
	auth.changes <- Change{Event: EventSignedIn, Session: &Session{UserID: "user-2", AccessToken: "t3"}}

	st := receive(t, states)
	if st.Session == nil || st.Session.UserID != "user-2" {
		t.Fatalf("expected user-2 after identity change, got %+v", st)
	}
	if got := p.AccessToken(); got != "t3" {
		t.Fatalf("expected latest token t3, got %q", got)
	}

	if err := p.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if st := receive(t, states); st.Present() {
		t.Fatalf("expected signed-out state, got %+v", st)
	}
	if auth.signOuts != 1 {
		t.Fatalf("expected one remote sign out, got %d", auth.signOuts)
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := Session{ExpiresAt: now.Add(10 * time.Second)}
	if s.Expired(now, 0) {
		t.Fatal("session should still be valid")
	}
	if !s.Expired(now, 30*time.Second) {
		t.Fatal("session should be treated as expired within skew")
	}
	if (Session{}).Expired(now, time.Hour) {
		t.Fatal("session without expiry never expires")
	}
}

func TestSealerRoundTripAndTamper(t *testing.T) {
	sealer, err := NewSealer([]byte("0123456789abcdef-secret"), "walley-session")
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	sealed, err := sealer.Seal([]byte(`{"user_id":"u"}`), []byte("key"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	plain, err := sealer.Open(sealed, []byte("key"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(plain, []byte(`{"user_id":"u"}`)) {
		t.Fatalf("unexpected plaintext %s", plain)
	}

	if _, err := sealer.Open(sealed, []byte("other-key")); err == nil {
		t.Fatal("expected open with different aad to fail")
	}
	sealed[len(sealed)-1] ^= 0xff
	if _, err := sealer.Open(sealed, []byte("key")); err == nil {
		t.Fatal("expected tampered payload to fail")
	}
	if _, err := sealer.Open([]byte("short"), nil); !errors.Is(err, ErrSealedTooShort) {
		t.Fatalf("expected ErrSealedTooShort, got %v", err)
	}
}

func TestMemoryPersister(t *testing.T) {
	ctx := context.Background()
	var m MemoryPersister
	if s, _ := m.Load(ctx); s != nil {
		t.Fatalf("expected empty persister, got %+v", s)
	}
	_ = m.Save(ctx, Session{UserID: "u"})
	s, _ := m.Load(ctx)
	if s == nil || s.UserID != "u" {
		t.Fatalf("unexpected session %+v", s)
	}
	_ = m.Clear(ctx)
	if s, _ := m.Load(ctx); s != nil {
		t.Fatal("expected cleared persister")
	}
}
