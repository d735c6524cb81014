package seed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/350ops/walleybranch/internal/backend"
	"github.com/350ops/walleybranch/internal/backend/memory"
	"github.com/350ops/walleybranch/internal/domain"
)

var genNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func generate(t *testing.T, cfg Config) Dataset {
	t.Helper()
	ds, err := New(cfg).Generate(context.Background(), "user-1", genNow)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return ds
}

func TestGenerateIsDeterministic(t *testing.T) {
	a := generate(t, DefaultConfig())
	b := generate(t, DefaultConfig())
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected identical datasets for the same seed")
	}
}

func TestGenerateProducesValidWallet(t *testing.T) {
	cfg := DefaultConfig()
	ds := generate(t, cfg)

	if len(ds.Cards) != cfg.Cards || len(ds.Recipients) != cfg.Recipients || len(ds.Transactions) != cfg.Transactions {
		t.Fatalf("unexpected sizes: %d cards, %d recipients, %d transactions", len(ds.Cards), len(ds.Recipients), len(ds.Transactions))
	}
	defaults := 0
	for _, c := range ds.Cards {
		if err := domain.Validate(c); err != nil {
			t.Fatalf("invalid card %+v: %v", c, err)
		}
		if c.IsDefault {
			defaults++
		}
	}
	if defaults != 1 {
		t.Fatalf("expected exactly one default card, got %d", defaults)
	}
	for _, r := range ds.Recipients {
		if err := domain.Validate(r); err != nil {
			t.Fatalf("invalid recipient %+v: %v", r, err)
		}
	}

	earliest := genNow.AddDate(0, -cfg.Months, 0)
	for _, tx := range ds.Transactions {
		if err := domain.Validate(tx.NewTransaction); err != nil {
			t.Fatalf("invalid transaction %+v: %v", tx, err)
		}
		at := *tx.OccurredAt
		if at.After(genNow) || at.Before(earliest) {
			t.Fatalf("transaction at %s outside window", at)
		}
		if tx.Amount.IsZero() {
			t.Fatalf("zero amount transaction %+v", tx)
		}
		if tx.Category == "income" && tx.Amount.IsNegative() {
			t.Fatalf("income must be positive, got %s", tx.Amount)
		}
	}
	if !ds.Balance.Equal(cfg.OpeningBalance) {
		t.Fatalf("expected opening balance %s, got %s", cfg.OpeningBalance, ds.Balance)
	}
}

func TestGenerateRequiresUserID(t *testing.T) {
	if _, err := New(DefaultConfig()).Generate(context.Background(), "", genNow); err == nil {
		t.Fatalf("expected error for empty user id")
	}
}

func TestLoaderWritesWalletAndResolvesReferences(t *testing.T) {
	ds := generate(t, DefaultConfig())
	mem := memory.New()
	ctx := context.Background()

	res, err := NewLoader(mem, quietLogger(), 3).Load(ctx, ds)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Result{Cards: len(ds.Cards), Recipients: len(ds.Recipients), Transactions: len(ds.Transactions), Notifications: len(ds.Notifications)}
	if res != want {
		t.Fatalf("unexpected result %+v, want %+v", res, want)
	}

	cards, _ := mem.ListCards(ctx, "user-1")
	cardIDs := map[string]bool{}
	defaults := 0
	for _, c := range cards {
		cardIDs[c.ID] = true
		if c.IsDefault {
			defaults++
		}
	}
	if defaults != 1 {
		t.Fatalf("expected one default card after load, got %d", defaults)
	}

	txs, _ := mem.ListTransactions(ctx, "user-1")
	for _, tx := range txs {
		if tx.CardID != "" && !cardIDs[tx.CardID] {
			t.Fatalf("transaction references unknown card %q", tx.CardID)
		}
	}
	for i := 1; i < len(txs); i++ {
		if txs[i].CreatedAt.After(txs[i-1].CreatedAt) {
			t.Fatalf("expected backdated transactions listed newest first")
		}
	}

	account, err := mem.FetchAccount(ctx, "user-1")
	if err != nil || !account.Balance.Equal(ds.Balance) || account.Currency != "USD" {
		t.Fatalf("unexpected account %+v, %v", account, err)
	}
	notifications, _ := mem.ListNotifications(ctx, "user-1")
	if len(notifications) != len(ds.Notifications) {
		t.Fatalf("expected %d notifications, got %d", len(ds.Notifications), len(notifications))
	}
}

type sourceOnly struct {
	backend.Source
}

func TestLoaderSkipsNotificationsWithoutWriter(t *testing.T) {
	ds := generate(t, DefaultConfig())
	res, err := NewLoader(sourceOnly{memory.New()}, quietLogger(), 2).Load(context.Background(), ds)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Notifications != 0 || res.Transactions != len(ds.Transactions) {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestLoaderAggregatesErrors(t *testing.T) {
	ds := generate(t, DefaultConfig())
	mem := memory.New()
	boom := errors.New("insert failed")
	mem.FailOn(memory.OpInsertRecipient, boom)

	res, err := NewLoader(mem, quietLogger(), 2).Load(context.Background(), ds)
	var taskErr *TaskError
	if !errors.As(err, &taskErr) {
		t.Fatalf("expected *TaskError, got %v", err)
	}
	if len(taskErr.Errors) != len(ds.Recipients) || !errors.Is(err, boom) {
		t.Fatalf("expected one error per recipient, got %d", len(taskErr.Errors))
	}
	if res.Transactions != 0 {
		t.Fatalf("transactions must not load after a failed stage, got %d", res.Transactions)
	}
}

func TestLoaderStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ds := generate(t, DefaultConfig())

	if _, err := NewLoader(memory.New(), quietLogger(), 2).Load(ctx, ds); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDatasetFileRoundTrip(t *testing.T) {
	ds := generate(t, Config{Cards: 1, Recipients: 1, Transactions: 2, Notifications: 1, Seed: 7})
	path := filepath.Join(t.TempDir(), "out", "wallets.json")

	if err := WriteDataset([]Dataset{ds}, path); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadDataset(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0].UserID != "user-1" || len(got[0].Transactions) != 2 {
		t.Fatalf("unexpected datasets %+v", got)
	}
	if got[0].Transactions[0].Card != ds.Transactions[0].Card || !got[0].Transactions[0].Amount.Equal(ds.Transactions[0].Amount) {
		t.Fatalf("transaction links lost: %+v", got[0].Transactions[0])
	}
}
