// Package memory is an in-process backend used for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/350ops/walleybranch/internal/backend"
	"github.com/350ops/walleybranch/internal/domain"
)

// Operation names accepted by FailOn and reported to hooks.
const (
	OpFetchProfile         = "fetch_profile"
	OpListCards            = "list_cards"
	OpListRecipients       = "list_recipients"
	OpListTransactions     = "list_transactions"
	OpFetchUserSettings    = "fetch_user_settings"
	OpListNotifications    = "list_notifications"
	OpFetchAccount         = "fetch_account"
	OpClearDefaultCards    = "clear_default_cards"
	OpInsertCard           = "insert_card"
	OpInsertRecipient      = "insert_recipient"
	OpInsertTransaction    = "insert_transaction"
	OpUpsertProfile        = "upsert_profile"
	OpUpsertUserSettings   = "upsert_user_settings"
	OpUpsertAccount        = "upsert_account"
	OpMarkNotificationRead = "mark_notification_read"
	OpInsertNotification   = "insert_notification"
	OpPing                 = "ping"
)

// Backend keeps every table in maps keyed by user id.
type Backend struct {
	mu            sync.Mutex
	profiles      map[string]domain.Profile
	cards         map[string][]domain.Card
	recipients    map[string][]domain.Recipient
	transactions  map[string][]domain.Transaction
	settings      map[string]domain.UserSettings
	notifications map[string][]domain.Notification
	accounts      map[string]domain.Account

	failures map[string]error
	calls    []string
	hook     func(ctx context.Context, op string)
	nowFn    func() time.Time
}

var (
	_ backend.Source             = (*Backend)(nil)
	_ backend.NotificationWriter = (*Backend)(nil)
)

// New returns an empty backend.
func New() *Backend {
	return &Backend{
		profiles:      map[string]domain.Profile{},
		cards:         map[string][]domain.Card{},
		recipients:    map[string][]domain.Recipient{},
		transactions:  map[string][]domain.Transaction{},
		settings:      map[string]domain.UserSettings{},
		notifications: map[string][]domain.Notification{},
		accounts:      map[string]domain.Account{},
		failures:      map[string]error{},
		nowFn:         time.Now,
	}
}

// WithClock overrides the time provider used to stamp new rows.
func (b *Backend) WithClock(nowFn func() time.Time) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	if nowFn != nil {
		b.nowFn = nowFn
	}
	return b
}

// FailOn makes every subsequent call of op return err. A nil err clears it.
func (b *Backend) FailOn(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, op)
		return
	}
	b.failures[op] = err
}

// OnCall registers a hook invoked before every operation, outside the lock.
// Tests use it to hold a call in flight.
func (b *Backend) OnCall(hook func(ctx context.Context, op string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hook = hook
}

// Calls returns the operations executed so far, in order.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// enter runs the hook, records the call and reports an injected failure.
// On success the caller holds b.mu and must unlock it.
func (b *Backend) enter(ctx context.Context, op string) error {
	b.mu.Lock()
	hook := b.hook
	b.mu.Unlock()
	if hook != nil {
		hook(ctx, op)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	b.calls = append(b.calls, op)
	if err := b.failures[op]; err != nil {
		b.mu.Unlock()
		return err
	}
	return nil
}

// SeedProfile stores a profile row as-is.
func (b *Backend) SeedProfile(p domain.Profile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profiles[p.ID] = p
}

// SeedCards appends card rows for their users.
func (b *Backend) SeedCards(cards ...domain.Card) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range cards {
		b.cards[c.UserID] = append(b.cards[c.UserID], c)
	}
}

// SeedRecipients appends recipient rows for their users.
func (b *Backend) SeedRecipients(rs ...domain.Recipient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range rs {
		b.recipients[r.UserID] = append(b.recipients[r.UserID], r)
	}
}

// SeedTransactions appends transaction rows for their users.
func (b *Backend) SeedTransactions(txs ...domain.Transaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, tx := range txs {
		b.transactions[tx.UserID] = append(b.transactions[tx.UserID], tx)
	}
}

// SeedNotifications appends notification rows for their users.
func (b *Backend) SeedNotifications(ns ...domain.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, n := range ns {
		b.notifications[n.UserID] = append(b.notifications[n.UserID], n)
	}
}

// SeedUserSettings stores a settings row as-is.
func (b *Backend) SeedUserSettings(s domain.UserSettings) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settings[s.UserID] = s
}

// SeedAccount stores an account row as-is.
func (b *Backend) SeedAccount(a domain.Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[a.UserID] = a
}

func (b *Backend) FetchProfile(ctx context.Context, userID string) (domain.Profile, error) {
	if err := b.enter(ctx, OpFetchProfile); err != nil {
		return domain.Profile{}, err
	}
	defer b.mu.Unlock()
	p, ok := b.profiles[userID]
	if !ok {
		return domain.Profile{}, backend.ErrNoRows
	}
	return p, nil
}

func (b *Backend) ListCards(ctx context.Context, userID string) ([]domain.Card, error) {
	if err := b.enter(ctx, OpListCards); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()
	return newestFirst(b.cards[userID], func(c domain.Card) time.Time { return c.CreatedAt }), nil
}

func (b *Backend) ListRecipients(ctx context.Context, userID string) ([]domain.Recipient, error) {
	if err := b.enter(ctx, OpListRecipients); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()
	return newestFirst(b.recipients[userID], func(r domain.Recipient) time.Time { return r.CreatedAt }), nil
}

func (b *Backend) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	if err := b.enter(ctx, OpListTransactions); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()
	return newestFirst(b.transactions[userID], func(tx domain.Transaction) time.Time { return tx.CreatedAt }), nil
}

func (b *Backend) FetchUserSettings(ctx context.Context, userID string) (domain.UserSettings, error) {
	if err := b.enter(ctx, OpFetchUserSettings); err != nil {
		return domain.UserSettings{}, err
	}
	defer b.mu.Unlock()
	s, ok := b.settings[userID]
	if !ok {
		return domain.UserSettings{}, backend.ErrNoRows
	}
	return s, nil
}

func (b *Backend) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	if err := b.enter(ctx, OpListNotifications); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()
	return newestFirst(b.notifications[userID], func(n domain.Notification) time.Time { return n.CreatedAt }), nil
}

func (b *Backend) FetchAccount(ctx context.Context, userID string) (domain.Account, error) {
	if err := b.enter(ctx, OpFetchAccount); err != nil {
		return domain.Account{}, err
	}
	defer b.mu.Unlock()
	a, ok := b.accounts[userID]
	if !ok {
		return domain.Account{}, backend.ErrNoRows
	}
	return a, nil
}

func (b *Backend) ClearDefaultCards(ctx context.Context, userID string) error {
	if err := b.enter(ctx, OpClearDefaultCards); err != nil {
		return err
	}
	defer b.mu.Unlock()
	for i := range b.cards[userID] {
		b.cards[userID][i].IsDefault = false
	}
	return nil
}

func (b *Backend) InsertCard(ctx context.Context, userID string, in domain.NewCard) (domain.Card, error) {
	if err := b.enter(ctx, OpInsertCard); err != nil {
		return domain.Card{}, err
	}
	defer b.mu.Unlock()
	card := domain.Card{
		ID:          uuid.NewString(),
		UserID:      userID,
		Last4:       in.Last4,
		ExpiryMonth: in.ExpiryMonth,
		ExpiryYear:  in.ExpiryYear,
		ColorScheme: in.ColorScheme,
		Brand:       in.Brand,
		Nickname:    in.Nickname,
		IsDefault:   in.IsDefault,
		CreatedAt:   b.nowFn().UTC(),
	}
	b.cards[userID] = append(b.cards[userID], card)
	return card, nil
}

func (b *Backend) InsertRecipient(ctx context.Context, userID string, in domain.NewRecipient) (domain.Recipient, error) {
	if err := b.enter(ctx, OpInsertRecipient); err != nil {
		return domain.Recipient{}, err
	}
	defer b.mu.Unlock()
	r := domain.Recipient{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		AvatarURL:    in.AvatarURL,
		AccountLast4: in.AccountLast4,
		CreatedAt:    b.nowFn().UTC(),
	}
	b.recipients[userID] = append(b.recipients[userID], r)
	return r, nil
}

func (b *Backend) InsertTransaction(ctx context.Context, userID string, in domain.NewTransaction) (domain.Transaction, error) {
	if err := b.enter(ctx, OpInsertTransaction); err != nil {
		return domain.Transaction{}, err
	}
	defer b.mu.Unlock()
	tx := domain.Transaction{
		ID:            uuid.NewString(),
		UserID:        userID,
		CardID:        in.CardID,
		RecipientID:   in.RecipientID,
		MerchantName:  in.MerchantName,
		Category:      in.Category,
		Amount:        in.Amount,
		PaymentMethod: in.PaymentMethod,
		IconURL:       in.IconURL,
		Status:        in.Status,
		CreatedAt:     in.CreatedAt(b.nowFn()),
	}
	b.transactions[userID] = append(b.transactions[userID], tx)
	return tx, nil
}

func (b *Backend) UpsertProfile(ctx context.Context, userID string, in domain.ProfileUpdate) (domain.Profile, error) {
	if err := b.enter(ctx, OpUpsertProfile); err != nil {
		return domain.Profile{}, err
	}
	defer b.mu.Unlock()
	now := b.nowFn().UTC()
	p, ok := b.profiles[userID]
	if !ok {
		p = domain.Profile{ID: userID, CreatedAt: now}
	}
	if in.FullName != nil {
		p.FullName = *in.FullName
	}
	if in.Username != nil {
		p.Username = *in.Username
	}
	if in.AvatarURL != nil {
		p.AvatarURL = *in.AvatarURL
	}
	if in.Phone != nil {
		p.Phone = *in.Phone
	}
	p.UpdatedAt = now
	b.profiles[userID] = p
	return p, nil
}

func (b *Backend) UpsertUserSettings(ctx context.Context, userID string, in domain.UserSettingsUpdate) (domain.UserSettings, error) {
	if err := b.enter(ctx, OpUpsertUserSettings); err != nil {
		return domain.UserSettings{}, err
	}
	defer b.mu.Unlock()
	s, ok := b.settings[userID]
	if !ok {
		s = domain.UserSettings{
			UserID:               userID,
			NotificationsEnabled: true,
			PushTokens:           []string{},
			Language:             "en",
			Theme:                "system",
		}
	}
	if in.NotificationsEnabled != nil {
		s.NotificationsEnabled = *in.NotificationsEnabled
	}
	if in.PushTokens != nil {
		s.PushTokens = append([]string(nil), in.PushTokens...)
	}
	if in.Language != nil {
		s.Language = *in.Language
	}
	if in.Theme != nil {
		s.Theme = *in.Theme
	}
	if in.SpendingLimit != nil {
		s.SpendingLimit.Decimal = *in.SpendingLimit
		s.SpendingLimit.Valid = true
	}
	if in.BiometricEnabled != nil {
		s.BiometricEnabled = *in.BiometricEnabled
	}
	if in.WeeklyDigest != nil {
		s.WeeklyDigest = *in.WeeklyDigest
	}
	s.UpdatedAt = b.nowFn().UTC()
	b.settings[userID] = s
	return s, nil
}

func (b *Backend) UpsertAccount(ctx context.Context, userID string, in domain.AccountUpsert) (domain.Account, error) {
	if err := b.enter(ctx, OpUpsertAccount); err != nil {
		return domain.Account{}, err
	}
	defer b.mu.Unlock()
	a, ok := b.accounts[userID]
	if !ok {
		a = domain.Account{ID: uuid.NewString(), UserID: userID}
	}
	a.Balance = in.Balance
	a.AvailableBalance = in.AvailableBalance
	a.Currency = in.Currency
	a.UpdatedAt = b.nowFn().UTC()
	b.accounts[userID] = a
	return a, nil
}

// MarkNotificationRead matches zero rows silently, like a filtered update.
func (b *Backend) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	if err := b.enter(ctx, OpMarkNotificationRead); err != nil {
		return err
	}
	defer b.mu.Unlock()
	for i := range b.notifications[userID] {
		if b.notifications[userID][i].ID == notificationID {
			b.notifications[userID][i].Read = true
		}
	}
	return nil
}

func (b *Backend) InsertNotification(ctx context.Context, userID string, n domain.Notification) (domain.Notification, error) {
	if err := b.enter(ctx, OpInsertNotification); err != nil {
		return domain.Notification{}, err
	}
	defer b.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = b.nowFn().UTC()
	}
	n.UserID = userID
	b.notifications[userID] = append(b.notifications[userID], n)
	return n, nil
}

func (b *Backend) Ping(ctx context.Context) error {
	if err := b.enter(ctx, OpPing); err != nil {
		return err
	}
	b.mu.Unlock()
	return nil
}

// newestFirst copies rows and orders them by creation time descending. Rows
// with equal timestamps keep reverse insertion order.
func newestFirst[T any](rows []T, createdAt func(T) time.Time) []T {
	out := make([]T, len(rows))
	for i, row := range rows {
		out[len(rows)-1-i] = row
	}
	sort.SliceStable(out, func(i, j int) bool {
		return createdAt(out[i]).After(createdAt(out[j]))
	})
	return out
}
