package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/350ops/walleybranch/internal/store"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type stubChannel struct {
	sent   []published
	err    error
	closed bool
}

func (s *stubChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (s *stubChannel) Close() error {
	s.closed = true
	return nil
}

func TestPublishChangeRoutesByEntityAndOp(t *testing.T) {
	ch := &stubChannel{}
	p := &Publisher{ch: ch, exchange: DefaultExchange}
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	change := store.Change{Entity: store.EntityCards, Op: store.OpCreate, UserID: "user-1", RecordID: "card-1", At: at}
	if err := p.PublishChange(context.Background(), change); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(ch.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(ch.sent))
	}
	got := ch.sent[0]
	if got.exchange != "wallet.events" || got.key != "wallet.cards.create" {
		t.Fatalf("unexpected routing %s/%s", got.exchange, got.key)
	}
	if got.msg.DeliveryMode != amqp.Persistent || !got.msg.Timestamp.Equal(at) {
		t.Fatalf("unexpected message headers %+v", got.msg)
	}

	var decoded store.Change
	if err := json.Unmarshal(got.msg.Body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.RecordID != "card-1" || decoded.UserID != "user-1" {
		t.Fatalf("unexpected body %+v", decoded)
	}
}

func TestPublishChangeWrapsChannelError(t *testing.T) {
	boom := errors.New("channel closed")
	p := &Publisher{ch: &stubChannel{err: boom}, exchange: DefaultExchange}

	err := p.PublishChange(context.Background(), store.Change{Entity: store.EntityNotifications, Op: store.OpMarkRead})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped channel error, got %v", err)
	}
}

func TestCloseWithoutConnection(t *testing.T) {
	ch := &stubChannel{}
	p := &Publisher{ch: ch}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !ch.closed {
		t.Fatalf("expected channel closed")
	}
}
