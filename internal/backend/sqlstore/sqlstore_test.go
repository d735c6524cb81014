package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/350ops/walleybranch/internal/backend"
	"github.com/350ops/walleybranch/internal/domain"
)

func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := New(db).WithClock(func() time.Time { return now })
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store, &now
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "dsn"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestSingletonsMissingAreNoRows(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.FetchProfile(ctx, "user-1"); !errors.Is(err, backend.ErrNoRows) {
		t.Fatalf("profile: expected ErrNoRows, got %v", err)
	}
	if _, err := store.FetchUserSettings(ctx, "user-1"); !errors.Is(err, backend.ErrNoRows) {
		t.Fatalf("settings: expected ErrNoRows, got %v", err)
	}
	if _, err := store.FetchAccount(ctx, "user-1"); !errors.Is(err, backend.ErrNoRows) {
		t.Fatalf("account: expected ErrNoRows, got %v", err)
	}
}

func TestCardsNewestFirstAndClearDefault(t *testing.T) {
	store, now := newTestStore(t)
	ctx := context.Background()

	first, err := store.InsertCard(ctx, "user-1", domain.NewCard{Last4: "1111", ExpiryMonth: 1, ExpiryYear: 2030, IsDefault: true})
	if err != nil {
		t.Fatalf("insert first card: %v", err)
	}
	*now = now.Add(time.Minute)
	if _, err := store.InsertCard(ctx, "user-2", domain.NewCard{Last4: "9999", ExpiryMonth: 1, ExpiryYear: 2030, IsDefault: true}); err != nil {
		t.Fatalf("insert other user's card: %v", err)
	}
	if err := store.ClearDefaultCards(ctx, "user-1"); err != nil {
		t.Fatalf("clear defaults: %v", err)
	}
	second, err := store.InsertCard(ctx, "user-1", domain.NewCard{Last4: "2222", ExpiryMonth: 2, ExpiryYear: 2031, IsDefault: true})
	if err != nil {
		t.Fatalf("insert second card: %v", err)
	}

	cards, err := store.ListCards(ctx, "user-1")
	if err != nil {
		t.Fatalf("list cards: %v", err)
	}
	if len(cards) != 2 || cards[0].ID != second.ID || cards[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", cards)
	}
	if !cards[0].IsDefault || cards[1].IsDefault {
		t.Fatalf("expected only the new card to be default, got %+v", cards)
	}

	others, err := store.ListCards(ctx, "user-2")
	if err != nil {
		t.Fatalf("list other cards: %v", err)
	}
	if len(others) != 1 || !others[0].IsDefault {
		t.Fatalf("clearing defaults must be scoped to the user, got %+v", others)
	}
}

func TestUpsertProfileUpdatesOnlyProvidedColumns(t *testing.T) {
	store, now := newTestStore(t)
	ctx := context.Background()

	name, username := "Ada Lovelace", "ada"
	created, err := store.UpsertProfile(ctx, "user-1", domain.ProfileUpdate{FullName: &name, Username: &username})
	if err != nil {
		t.Fatalf("insert profile: %v", err)
	}
	if created.ID != "user-1" || created.FullName != name {
		t.Fatalf("unexpected profile: %+v", created)
	}

	*now = now.Add(time.Hour)
	phone := "+15550001111"
	updated, err := store.UpsertProfile(ctx, "user-1", domain.ProfileUpdate{Phone: &phone})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.FullName != name || updated.Username != username || updated.Phone != phone {
		t.Fatalf("expected merge of provided columns only, got %+v", updated)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("expected updated_at to move, got %s then %s", created.UpdatedAt, updated.UpdatedAt)
	}
}

func TestUpsertUserSettingsAppliesDefaults(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	limit := decimal.RequireFromString("300.00")
	st, err := store.UpsertUserSettings(ctx, "user-1", domain.UserSettingsUpdate{SpendingLimit: &limit, PushTokens: []string{"tok"}})
	if err != nil {
		t.Fatalf("insert settings: %v", err)
	}
	if !st.NotificationsEnabled || st.Language != "en" || st.Theme != "system" {
		t.Fatalf("expected defaults on insert, got %+v", st)
	}
	if !st.SpendingLimit.Valid || !st.SpendingLimit.Decimal.Equal(limit) {
		t.Fatalf("unexpected spending limit %+v", st.SpendingLimit)
	}
	if len(st.PushTokens) != 1 || st.PushTokens[0] != "tok" {
		t.Fatalf("unexpected push tokens %v", st.PushTokens)
	}

	theme := "dark"
	st, err = store.UpsertUserSettings(ctx, "user-1", domain.UserSettingsUpdate{Theme: &theme})
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if st.Theme != "dark" || !st.SpendingLimit.Valid {
		t.Fatalf("expected theme updated and limit kept, got %+v", st)
	}
}

func TestUpsertAccountKeepsRowIdentity(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.UpsertAccount(ctx, "user-1", domain.AccountUpsert{Balance: decimal.NewFromInt(10), AvailableBalance: decimal.NewFromInt(10), Currency: "USD"})
	if err != nil {
		t.Fatalf("insert account: %v", err)
	}
	second, err := store.UpsertAccount(ctx, "user-1", domain.AccountUpsert{Balance: decimal.RequireFromString("15.25"), AvailableBalance: decimal.RequireFromString("15.25"), Currency: "USD"})
	if err != nil {
		t.Fatalf("update account: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same account row, got %s then %s", first.ID, second.ID)
	}
	if !second.Balance.Equal(decimal.RequireFromString("15.25")) || !second.AvailableBalance.Equal(second.Balance) {
		t.Fatalf("unexpected balances: %+v", second)
	}
}

func TestMarkNotificationReadIsScoped(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	mine, err := store.InsertNotification(ctx, "user-1", domain.Notification{Title: "Hello"})
	if err != nil {
		t.Fatalf("insert notification: %v", err)
	}
	if err := store.MarkNotificationRead(ctx, "user-2", mine.ID); err != nil {
		t.Fatalf("mark read as other user: %v", err)
	}
	list, _ := store.ListNotifications(ctx, "user-1")
	if len(list) != 1 || list[0].Read {
		t.Fatalf("another user must not flip the flag, got %+v", list)
	}

	if err := store.MarkNotificationRead(ctx, "user-1", mine.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	list, _ = store.ListNotifications(ctx, "user-1")
	if !list[0].Read {
		t.Fatalf("expected notification read, got %+v", list[0])
	}
}

func TestTransactionsRoundTripAmounts(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.InsertTransaction(ctx, "user-1", domain.NewTransaction{MerchantName: "Cafe", Amount: decimal.RequireFromString("-4.75")}); err != nil {
		t.Fatalf("insert transaction: %v", err)
	}
	txs, err := store.ListTransactions(ctx, "user-1")
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txs) != 1 || !txs[0].Amount.Equal(decimal.RequireFromString("-4.75")) {
		t.Fatalf("unexpected transactions: %+v", txs)
	}
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
