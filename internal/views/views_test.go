package views

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/350ops/walleybranch/internal/domain"
	"github.com/350ops/walleybranch/internal/store"
)

func tx(id string, amount string, at time.Time) domain.Transaction {
	return domain.Transaction{ID: id, UserID: "user-1", MerchantName: "m", Amount: decimal.RequireFromString(amount), CreatedAt: at}
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 10, 0, 0, 0, time.UTC)
}

func TestPrimaryCardPrefersDefault(t *testing.T) {
	cards := []domain.Card{
		{ID: "newest"},
		{ID: "middle", IsDefault: true},
		{ID: "oldest"},
	}
	if got := PrimaryCard(cards); got == nil || got.ID != "middle" {
		t.Fatalf("expected default card, got %+v", got)
	}

	cards[1].IsDefault = false
	if got := PrimaryCard(cards); got == nil || got.ID != "newest" {
		t.Fatalf("expected first card, got %+v", got)
	}
	if got := PrimaryCard(nil); got != nil {
		t.Fatalf("expected nil for no cards, got %+v", got)
	}
}

func TestMonthlyTotalsIgnoresInputOrder(t *testing.T) {
	txs := []domain.Transaction{
		tx("1", "-12.345", day(2024, time.January, 3)),
		tx("2", "100", day(2023, time.December, 30)),
		tx("3", "-0.005", day(2024, time.January, 20)),
		tx("4", "-40", day(2024, time.October, 1)),
		tx("5", "15.10", day(2023, time.December, 2)),
		tx("6", "-3", day(2024, time.February, 9)),
	}
	want := MonthlyTotals(txs, time.UTC)

	perms := [][]int{{5, 4, 3, 2, 1, 0}, {2, 0, 4, 1, 5, 3}, {3, 1, 5, 0, 2, 4}}
	for _, perm := range perms {
		shuffled := make([]domain.Transaction, len(txs))
		for i, j := range perm {
			shuffled[i] = txs[j]
		}
		if got := MonthlyTotals(shuffled, time.UTC); !sameTotals(got, want) {
			t.Fatalf("order %v: expected %+v, got %+v", perm, want, got)
		}
	}

	labels := make([]string, 0, len(want))
	for _, m := range want {
		labels = append(labels, m.Label)
	}
	if !reflect.DeepEqual(labels, []string{"Dec", "Jan", "Feb", "Oct"}) {
		t.Fatalf("expected chronological months, got %v", labels)
	}
	if !want[0].Total.Equal(decimal.RequireFromString("115.10")) {
		t.Fatalf("unexpected December total %s", want[0].Total)
	}
	if !want[1].Total.Equal(decimal.RequireFromString("-12.35")) {
		t.Fatalf("expected January rounded to cents, got %s", want[1].Total)
	}
}

func sameTotals(a, b []MonthlyTotal) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Year != b[i].Year || a[i].Month != b[i].Month || a[i].Label != b[i].Label || !a[i].Total.Equal(b[i].Total) {
			return false
		}
	}
	return true
}

func TestMonthlyTotalsUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	txs := []domain.Transaction{tx("1", "10", time.Date(2024, time.March, 1, 2, 0, 0, 0, time.UTC))}

	got := MonthlyTotals(txs, loc)
	if len(got) != 1 || got[0].Month != time.February {
		t.Fatalf("expected the transaction to fall in February locally, got %+v", got)
	}
}

func TestSpentThisMonthIsSignedSum(t *testing.T) {
	now := day(2024, time.May, 20)
	txs := []domain.Transaction{
		tx("1", "50", day(2024, time.May, 1)),
		tx("2", "-20", day(2024, time.May, 10)),
		tx("3", "10", day(2024, time.May, 19)),
		tx("4", "-999", day(2024, time.April, 30)),
		tx("5", "-999", day(2023, time.May, 15)),
	}

	if got := SpentThisMonth(txs, now); !got.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected 40, got %s", got)
	}
}

func TestUnreadCountAndRecent(t *testing.T) {
	ns := []domain.Notification{{ID: "a"}, {ID: "b", Read: true}, {ID: "c"}}
	if got := UnreadCount(ns); got != 2 {
		t.Fatalf("expected 2 unread, got %d", got)
	}

	var txs []domain.Transaction
	for i := 0; i < 8; i++ {
		txs = append(txs, tx(string(rune('a'+i)), "1", day(2024, time.May, 1)))
	}
	recent := RecentTransactions(txs)
	if len(recent) != RecentLimit || recent[0].ID != "a" || recent[4].ID != "e" {
		t.Fatalf("expected first five in order, got %+v", recent)
	}
	if got := RecentRecipients([]domain.Recipient{{ID: "r"}}); len(got) != 1 {
		t.Fatalf("expected short input returned whole, got %+v", got)
	}
}

func TestMemoRecomputesOnRevisionChange(t *testing.T) {
	now := day(2024, time.May, 20)
	memo := NewMemo(time.UTC, func() time.Time { return now })

	snap := store.Snapshot{
		Hydrated:     true,
		Revisions:    map[store.Entity]uint64{store.EntityTransactions: 1},
		Transactions: []domain.Transaction{tx("1", "-5", day(2024, time.May, 2))},
		Account:      &domain.Account{Balance: decimal.NewFromInt(70)},
	}
	first := memo.Summary(snap)
	if !first.SpentThisMonth.Equal(decimal.NewFromInt(-5)) || first.Balance == nil || !first.Balance.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("unexpected summary %+v", first)
	}

	snap.Transactions = append(snap.Transactions, tx("2", "-10", day(2024, time.May, 3)))
	if cached := memo.Summary(snap); !cached.SpentThisMonth.Equal(first.SpentThisMonth) {
		t.Fatalf("expected cached value while revision is unchanged, got %s", cached.SpentThisMonth)
	}

	snap.Revisions[store.EntityTransactions] = 2
	if fresh := memo.Summary(snap); !fresh.SpentThisMonth.Equal(decimal.NewFromInt(-15)) {
		t.Fatalf("expected recompute after revision bump, got %s", fresh.SpentThisMonth)
	}

	now = day(2024, time.June, 1)
	if rolled := memo.Summary(snap); !rolled.SpentThisMonth.IsZero() {
		t.Fatalf("expected month rollover to recompute, got %s", rolled.SpentThisMonth)
	}
}
