// Package seed generates demo wallets and loads them into a backend.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/350ops/walleybranch/internal/domain"
)

// NoRef marks a transaction that is not linked to a generated card or recipient.
const NoRef = -1

// Transaction is a generated transaction linked by index to the dataset's
// cards and recipients, whose ids are only known once they are inserted.
type Transaction struct {
	domain.NewTransaction
	Card      int `json:"card_index"`
	Recipient int `json:"recipient_index"`
}

// Dataset is one user's generated wallet.
type Dataset struct {
	UserID        string                    `json:"user_id"`
	Profile       domain.ProfileUpdate      `json:"profile"`
	Settings      domain.UserSettingsUpdate `json:"settings"`
	Cards         []domain.NewCard          `json:"cards"`
	Recipients    []domain.NewRecipient     `json:"recipients"`
	Transactions  []Transaction             `json:"transactions"`
	Notifications []domain.Notification     `json:"notifications"`
	Balance       decimal.Decimal           `json:"balance"`
}

// Generator produces deterministic demo wallets for a given seed.
type Generator struct {
	cfg       Config
	rand      *rand.Rand
	fragments fragments
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.Cards <= 0 {
		cfg.Cards = def.Cards
	}
	if cfg.Recipients <= 0 {
		cfg.Recipients = def.Recipients
	}
	if cfg.Transactions < 0 {
		cfg.Transactions = def.Transactions
	}
	if cfg.Notifications < 0 {
		cfg.Notifications = def.Notifications
	}
	if cfg.Months <= 0 {
		cfg.Months = def.Months
	}
	if cfg.IncomeChance < 0 || cfg.IncomeChance > 1 {
		cfg.IncomeChance = def.IncomeChance
	}
	if cfg.OpeningBalance.IsNegative() {
		cfg.OpeningBalance = def.OpeningBalance
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return &Generator{
		cfg:       cfg,
		rand:      rand.New(rand.NewSource(cfg.Seed)),
		fragments: defaultFragments(),
	}
}

// Generate builds a wallet for userID with transactions spread over the
// configured number of months before now. Exactly one card is the default.
func (g *Generator) Generate(ctx context.Context, userID string, now time.Time) (Dataset, error) {
	if userID == "" {
		return Dataset{}, errors.New("seed: user id is required")
	}
	now = now.UTC()

	name := g.randomFullName()
	username := g.fragments.usernames[g.rand.Intn(len(g.fragments.usernames))]
	phone := g.randomPhone()
	ds := Dataset{
		UserID:  userID,
		Profile: domain.ProfileUpdate{FullName: &name, Username: &username, Phone: &phone},
		Balance: g.cfg.OpeningBalance,
	}

	enabled, language, theme := true, "en", "system"
	limit := decimal.NewFromInt(int64(500 + 100*g.rand.Intn(10)))
	ds.Settings = domain.UserSettingsUpdate{
		NotificationsEnabled: &enabled,
		Language:             &language,
		Theme:                &theme,
		SpendingLimit:        &limit,
	}

	defaultCard := g.rand.Intn(g.cfg.Cards)
	for i := 0; i < g.cfg.Cards; i++ {
		ds.Cards = append(ds.Cards, domain.NewCard{
			Last4:       fmt.Sprintf("%04d", g.rand.Intn(10000)),
			ExpiryMonth: 1 + g.rand.Intn(12),
			ExpiryYear:  now.Year() + 1 + g.rand.Intn(5),
			ColorScheme: g.pick(g.fragments.colors),
			Brand:       g.pick(g.fragments.brands),
			Nickname:    g.pick(g.fragments.nicknames),
			IsDefault:   i == defaultCard,
		})
	}

	for i := 0; i < g.cfg.Recipients; i++ {
		first, last := g.pick(g.fragments.first), g.pick(g.fragments.last)
		ds.Recipients = append(ds.Recipients, domain.NewRecipient{
			Name:         first + " " + last,
			Email:        fmt.Sprintf("%s.%s@%s", strings.ToLower(first), strings.ToLower(last), g.pick(g.fragments.domains)),
			Phone:        g.randomPhone(),
			AccountLast4: fmt.Sprintf("%04d", g.rand.Intn(10000)),
		})
	}

	window := now.Sub(now.AddDate(0, -g.cfg.Months, 0))
	for i := 0; i < g.cfg.Transactions; i++ {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}
		at := now.Add(-time.Duration(g.rand.Int63n(int64(window))))
		tx := Transaction{Card: NoRef, Recipient: NoRef}
		tx.OccurredAt = &at
		tx.Status = "completed"

		if g.rand.Float64() < g.cfg.IncomeChance {
			tx.MerchantName = g.pick(g.fragments.employers)
			tx.Category = "income"
			tx.PaymentMethod = "transfer"
			tx.Amount = g.randomAmount(800, 2500)
		} else if g.rand.Float64() < 0.25 {
			tx.Recipient = g.rand.Intn(g.cfg.Recipients)
			tx.MerchantName = ds.Recipients[tx.Recipient].Name
			tx.Category = "transfer"
			tx.PaymentMethod = "transfer"
			tx.Amount = g.randomAmount(10, 200).Neg()
		} else {
			m := g.fragments.merchants[g.rand.Intn(len(g.fragments.merchants))]
			tx.Card = g.rand.Intn(g.cfg.Cards)
			tx.MerchantName = m.name
			tx.Category = m.category
			tx.PaymentMethod = "card"
			tx.Amount = g.randomAmount(m.lo, m.hi).Neg()
		}
		ds.Transactions = append(ds.Transactions, tx)
	}

	for i := 0; i < g.cfg.Notifications; i++ {
		n := g.fragments.notices[g.rand.Intn(len(g.fragments.notices))]
		ds.Notifications = append(ds.Notifications, domain.Notification{
			UserID:    userID,
			Title:     n.title,
			Body:      n.body,
			Type:      n.kind,
			Read:      g.rand.Float64() < 0.4,
			CreatedAt: now.Add(-time.Duration(g.rand.Intn(14*24)) * time.Hour),
		})
	}

	return ds, nil
}

func (g *Generator) pick(values []string) string {
	return values[g.rand.Intn(len(values))]
}

func (g *Generator) randomFullName() string {
	return g.pick(g.fragments.first) + " " + g.pick(g.fragments.last)
}

func (g *Generator) randomPhone() string {
	return fmt.Sprintf("+1%03d%03d%04d", g.rand.Intn(800)+200, g.rand.Intn(900)+100, g.rand.Intn(10000))
}

// randomAmount returns a two-decimal amount in [lo, hi).
func (g *Generator) randomAmount(lo, hi int) decimal.Decimal {
	cents := int64(lo*100) + g.rand.Int63n(int64((hi-lo)*100))
	return decimal.New(cents, -2)
}

type merchant struct {
	name     string
	category string
	lo, hi   int
}

type notice struct {
	title, body, kind string
}

type fragments struct {
	first     []string
	last      []string
	usernames []string
	domains   []string
	colors    []string
	brands    []string
	nicknames []string
	employers []string
	merchants []merchant
	notices   []notice
}

func defaultFragments() fragments {
	return fragments{
		first:     []string{"Jane", "John", "Alex", "Priya", "Liu", "Maria", "Omar", "Sofia", "Noah", "Emma", "Lucas", "Mia", "Ava", "Ethan", "Zara"},
		last:      []string{"Doe", "Smith", "Chen", "Patel", "Garcia", "Khan", "Kim", "Ivanov", "Nguyen", "Silva", "Brown", "Lee"},
		usernames: []string{"wallet", "saver", "spender", "traveler", "foodie", "minimalist"},
		domains:   []string{"example.com", "mail.com", "inbox.net"},
		colors:    []string{"midnight", "ocean", "sunset", "forest", "graphite"},
		brands:    []string{"visa", "mastercard", "amex"},
		nicknames: []string{"Everyday", "Travel", "Groceries", "Online", "Backup"},
		employers: []string{"Acme Payroll", "Freelance Payout", "Tax Refund"},
		merchants: []merchant{
			{name: "Blue Bottle Coffee", category: "food", lo: 3, hi: 12},
			{name: "Whole Foods", category: "groceries", lo: 20, hi: 180},
			{name: "Uber", category: "transport", lo: 8, hi: 45},
			{name: "Netflix", category: "entertainment", lo: 10, hi: 20},
			{name: "Amazon", category: "shopping", lo: 15, hi: 250},
			{name: "Shell", category: "fuel", lo: 30, hi: 90},
			{name: "Delta Air Lines", category: "travel", lo: 150, hi: 600},
		},
		notices: []notice{
			{title: "Payment received", body: "You received a transfer.", kind: "payment"},
			{title: "Card added", body: "A new card was added to your wallet.", kind: "security"},
			{title: "Spending alert", body: "You are close to your monthly limit.", kind: "alert"},
			{title: "Weekly summary", body: "Your weekly spending summary is ready.", kind: "digest"},
			{title: "New sign-in", body: "Your account was accessed from a new device.", kind: "security"},
		},
	}
}
