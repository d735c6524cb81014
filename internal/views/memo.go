package views

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/350ops/walleybranch/internal/domain"
	"github.com/350ops/walleybranch/internal/store"
)

// Summary bundles every projection for one snapshot.
type Summary struct {
	Hydrated           bool                 `json:"hydrated"`
	PrimaryCard        *domain.Card         `json:"primaryCard"`
	MonthlyTotals      []MonthlyTotal       `json:"monthlyTotals"`
	SpentThisMonth     decimal.Decimal      `json:"spentThisMonth"`
	UnreadCount        int                  `json:"unreadCount"`
	RecentRecipients   []domain.Recipient   `json:"recentRecipients"`
	RecentTransactions []domain.Transaction `json:"recentTransactions"`
	Balance            *decimal.Decimal     `json:"balance,omitempty"`
}

type memoEntry[T any] struct {
	rev   uint64
	month string
	ok    bool
	value T
}

func (e *memoEntry[T]) get(rev uint64, month string, compute func() T) T {
	if e.ok && e.rev == rev && e.month == month {
		return e.value
	}
	e.value = compute()
	e.rev, e.month, e.ok = rev, month, true
	return e.value
}

// Memo recomputes a projection only when the revision of the slot it reads
// has moved. Spent-this-month is also recomputed when the calendar month
// rolls over.
type Memo struct {
	loc   *time.Location
	nowFn func() time.Time

	mu           sync.Mutex
	primary      memoEntry[*domain.Card]
	monthly      memoEntry[[]MonthlyTotal]
	spent        memoEntry[decimal.Decimal]
	unread       memoEntry[int]
	recentRecips memoEntry[[]domain.Recipient]
	recentTxs    memoEntry[[]domain.Transaction]
}

// NewMemo builds a Memo grouping months in loc.
func NewMemo(loc *time.Location, nowFn func() time.Time) *Memo {
	if loc == nil {
		loc = time.Local
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Memo{loc: loc, nowFn: nowFn}
}

// Summary projects snap.
func (m *Memo) Summary(snap store.Snapshot) Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFn().In(m.loc)
	txRev := snap.Revisions[store.EntityTransactions]

	out := Summary{
		Hydrated: snap.Hydrated,
		PrimaryCard: m.primary.get(snap.Revisions[store.EntityCards], "", func() *domain.Card {
			return PrimaryCard(snap.Cards)
		}),
		MonthlyTotals: m.monthly.get(txRev, "", func() []MonthlyTotal {
			return MonthlyTotals(snap.Transactions, m.loc)
		}),
		SpentThisMonth: m.spent.get(txRev, now.Format("2006-01"), func() decimal.Decimal {
			return SpentThisMonth(snap.Transactions, now)
		}),
		UnreadCount: m.unread.get(snap.Revisions[store.EntityNotifications], "", func() int {
			return UnreadCount(snap.Notifications)
		}),
		RecentRecipients: m.recentRecips.get(snap.Revisions[store.EntityRecipients], "", func() []domain.Recipient {
			return RecentRecipients(snap.Recipients)
		}),
		RecentTransactions: m.recentTxs.get(txRev, "", func() []domain.Transaction {
			return RecentTransactions(snap.Transactions)
		}),
	}
	if snap.Account != nil {
		b := snap.Account.Balance
		out.Balance = &b
	}
	return out
}
