// Package views holds the read-only projections computed from the cache.
package views

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/350ops/walleybranch/internal/domain"
)

// RecentLimit is the size of the recent-items projections.
const RecentLimit = 5

// MonthlyTotal is the signed sum of one calendar month's transactions.
type MonthlyTotal struct {
	Year  int             `json:"year"`
	Month time.Month      `json:"-"`
	Label string          `json:"month"`
	Total decimal.Decimal `json:"total"`
}

// PrimaryCard returns the default card, or the first card when none is
// flagged. Cards are expected newest first. Nil when there are no cards.
func PrimaryCard(cards []domain.Card) *domain.Card {
	if len(cards) == 0 {
		return nil
	}
	for i := range cards {
		if cards[i].IsDefault {
			c := cards[i]
			return &c
		}
	}
	c := cards[0]
	return &c
}

// MonthlyTotals groups transactions by calendar month in loc and returns the
// sums in ascending month order, rounded to cents. The result does not depend
// on the order of txs.
func MonthlyTotals(txs []domain.Transaction, loc *time.Location) []MonthlyTotal {
	if loc == nil {
		loc = time.UTC
	}
	type key struct {
		year  int
		month time.Month
	}
	sums := map[key]decimal.Decimal{}
	for _, tx := range txs {
		created := tx.CreatedAt.In(loc)
		k := key{created.Year(), created.Month()}
		sums[k] = sums[k].Add(tx.Amount)
	}

	out := make([]MonthlyTotal, 0, len(sums))
	for k, total := range sums {
		out = append(out, MonthlyTotal{
			Year:  k.year,
			Month: k.month,
			Label: k.month.String()[:3],
			Total: total.Round(2),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// SpentThisMonth is the signed sum of the transactions created in the same
// calendar month as now, in now's location. Income offsets spend.
func SpentThisMonth(txs []domain.Transaction, now time.Time) decimal.Decimal {
	total := decimal.Zero
	year, month, _ := now.Date()
	for _, tx := range txs {
		y, m, _ := tx.CreatedAt.In(now.Location()).Date()
		if y == year && m == month {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// UnreadCount counts notifications not yet read.
func UnreadCount(notifications []domain.Notification) int {
	n := 0
	for _, notif := range notifications {
		if !notif.Read {
			n++
		}
	}
	return n
}

// RecentRecipients returns the first RecentLimit recipients.
func RecentRecipients(recipients []domain.Recipient) []domain.Recipient {
	return head(recipients, RecentLimit)
}

// RecentTransactions returns the first RecentLimit transactions.
func RecentTransactions(txs []domain.Transaction) []domain.Transaction {
	return head(txs, RecentLimit)
}

func head[T any](rows []T, n int) []T {
	if len(rows) < n {
		n = len(rows)
	}
	return append([]T{}, rows[:n]...)
}
