// Package graphstore keeps wallet records in a graph database. Every record
// hangs off a (:WalletUser {userId}) node.
package graphstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/350ops/walleybranch/internal/backend"
	"github.com/350ops/walleybranch/internal/domain"
	"github.com/350ops/walleybranch/internal/graph"
)

// Store implements backend.Source over a graph client.
type Store struct {
	client graph.Client
	nowFn  func() time.Time
}

var (
	_ backend.Source             = (*Store)(nil)
	_ backend.NotificationWriter = (*Store)(nil)
)

// New instantiates a Store backed by the supplied graph client.
func New(client graph.Client) *Store {
	return &Store{client: client, nowFn: time.Now}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *Store) WithClock(nowFn func() time.Time) *Store {
	if nowFn != nil {
		s.nowFn = nowFn
	}
	return s
}

func (s *Store) now() string {
	return graph.FormatTime(s.nowFn())
}

func (s *Store) readRows(ctx context.Context, op, cypher, userID string) ([]graph.Record, error) {
	res, err := s.client.ExecuteRead(ctx, cypher, map[string]any{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("%s for user %s: %w", op, userID, err)
	}
	rows := make([]graph.Record, 0, len(res.Records))
	for _, rec := range res.Records {
		if row := rec.Map("row"); row != nil {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *Store) readOne(ctx context.Context, op, cypher, userID string) (graph.Record, error) {
	rows, err := s.readRows(ctx, op, cypher, userID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, backend.ErrNoRows
	}
	return rows[0], nil
}

func (s *Store) writeOne(ctx context.Context, op, cypher string, params map[string]any) (graph.Record, error) {
	res, err := s.client.ExecuteWrite(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	first, ok := res.First()
	if !ok || first.Map("row") == nil {
		return nil, fmt.Errorf("%s: no row returned", op)
	}
	return first.Map("row"), nil
}

func (s *Store) FetchProfile(ctx context.Context, userID string) (domain.Profile, error) {
	row, err := s.readOne(ctx, "fetch profile", fetchProfileCypher, userID)
	if err != nil {
		return domain.Profile{}, err
	}
	return profileFromRow(row), nil
}

func (s *Store) ListCards(ctx context.Context, userID string) ([]domain.Card, error) {
	rows, err := s.readRows(ctx, "list cards", listCardsCypher, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Card, 0, len(rows))
	for _, row := range rows {
		out = append(out, cardFromRow(row))
	}
	return out, nil
}

func (s *Store) ListRecipients(ctx context.Context, userID string) ([]domain.Recipient, error) {
	rows, err := s.readRows(ctx, "list recipients", listRecipientsCypher, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Recipient, 0, len(rows))
	for _, row := range rows {
		out = append(out, recipientFromRow(row))
	}
	return out, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	rows, err := s.readRows(ctx, "list transactions", listTransactionsCypher, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, transactionFromRow(row))
	}
	return out, nil
}

func (s *Store) FetchUserSettings(ctx context.Context, userID string) (domain.UserSettings, error) {
	row, err := s.readOne(ctx, "fetch user settings", fetchSettingsCypher, userID)
	if err != nil {
		return domain.UserSettings{}, err
	}
	return settingsFromRow(row), nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	rows, err := s.readRows(ctx, "list notifications", listNotificationsCypher, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, notificationFromRow(row))
	}
	return out, nil
}

func (s *Store) FetchAccount(ctx context.Context, userID string) (domain.Account, error) {
	row, err := s.readOne(ctx, "fetch account", fetchAccountCypher, userID)
	if err != nil {
		return domain.Account{}, err
	}
	return accountFromRow(row), nil
}

func (s *Store) ClearDefaultCards(ctx context.Context, userID string) error {
	if _, err := s.client.ExecuteWrite(ctx, clearDefaultCardsCypher, map[string]any{"userId": userID}); err != nil {
		return fmt.Errorf("clear default cards for user %s: %w", userID, err)
	}
	return nil
}

func (s *Store) InsertCard(ctx context.Context, userID string, in domain.NewCard) (domain.Card, error) {
	params := map[string]any{
		"userId": userID,
		"cardId": uuid.NewString(),
		"props": map[string]any{
			"last4":       in.Last4,
			"expiryMonth": in.ExpiryMonth,
			"expiryYear":  in.ExpiryYear,
			"colorScheme": in.ColorScheme,
			"brand":       in.Brand,
			"nickname":    in.Nickname,
			"isDefault":   in.IsDefault,
			"createdAt":   s.now(),
		},
	}
	row, err := s.writeOne(ctx, "insert card", insertCardCypher, params)
	if err != nil {
		return domain.Card{}, err
	}
	return cardFromRow(row), nil
}

func (s *Store) InsertRecipient(ctx context.Context, userID string, in domain.NewRecipient) (domain.Recipient, error) {
	params := map[string]any{
		"userId":      userID,
		"recipientId": uuid.NewString(),
		"props": map[string]any{
			"name":         in.Name,
			"email":        in.Email,
			"phone":        in.Phone,
			"avatarUrl":    in.AvatarURL,
			"accountLast4": in.AccountLast4,
			"createdAt":    s.now(),
		},
	}
	row, err := s.writeOne(ctx, "insert recipient", insertRecipientCypher, params)
	if err != nil {
		return domain.Recipient{}, err
	}
	return recipientFromRow(row), nil
}

func (s *Store) InsertTransaction(ctx context.Context, userID string, in domain.NewTransaction) (domain.Transaction, error) {
	params := map[string]any{
		"userId":        userID,
		"transactionId": uuid.NewString(),
		"cardId":        in.CardID,
		"recipientId":   in.RecipientID,
		"props": map[string]any{
			"cardId":        in.CardID,
			"recipientId":   in.RecipientID,
			"merchantName":  in.MerchantName,
			"category":      in.Category,
			"amount":        in.Amount.String(),
			"paymentMethod": in.PaymentMethod,
			"iconUrl":       in.IconURL,
			"status":        in.Status,
			"createdAt":     graph.FormatTime(in.CreatedAt(s.nowFn())),
		},
	}
	row, err := s.writeOne(ctx, "insert transaction", insertTransactionCypher, params)
	if err != nil {
		return domain.Transaction{}, err
	}
	return transactionFromRow(row), nil
}

func (s *Store) UpsertProfile(ctx context.Context, userID string, in domain.ProfileUpdate) (domain.Profile, error) {
	props := map[string]any{"updatedAt": s.now()}
	for col, v := range in.Columns() {
		props[graphKey(col)] = v
	}
	params := map[string]any{"userId": userID, "now": s.now(), "props": props}
	row, err := s.writeOne(ctx, "upsert profile", upsertProfileCypher, params)
	if err != nil {
		return domain.Profile{}, err
	}
	return profileFromRow(row), nil
}

func (s *Store) UpsertUserSettings(ctx context.Context, userID string, in domain.UserSettingsUpdate) (domain.UserSettings, error) {
	props := map[string]any{"updatedAt": s.now()}
	for col, v := range in.Columns() {
		if d, ok := v.(decimal.Decimal); ok {
			v = d.String()
		}
		props[graphKey(col)] = v
	}
	params := map[string]any{"userId": userID, "props": props}
	row, err := s.writeOne(ctx, "upsert user settings", upsertSettingsCypher, params)
	if err != nil {
		return domain.UserSettings{}, err
	}
	return settingsFromRow(row), nil
}

func (s *Store) UpsertAccount(ctx context.Context, userID string, in domain.AccountUpsert) (domain.Account, error) {
	params := map[string]any{
		"userId":    userID,
		"accountId": uuid.NewString(),
		"props": map[string]any{
			"balance":          in.Balance.String(),
			"availableBalance": in.AvailableBalance.String(),
			"currency":         in.Currency,
			"updatedAt":        s.now(),
		},
	}
	row, err := s.writeOne(ctx, "upsert account", upsertAccountCypher, params)
	if err != nil {
		return domain.Account{}, err
	}
	return accountFromRow(row), nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	params := map[string]any{"userId": userID, "notificationId": notificationID}
	if _, err := s.client.ExecuteWrite(ctx, markNotificationReadCypher, params); err != nil {
		return fmt.Errorf("mark notification %s read: %w", notificationID, err)
	}
	return nil
}

// Ping verifies the Bolt connection.
func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return errors.New("graph client not configured")
	}
	return s.client.VerifyConnectivity(ctx)
}

// InsertNotification stores a notification as delivered by the server side.
func (s *Store) InsertNotification(ctx context.Context, userID string, n domain.Notification) (domain.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.nowFn()
	}
	params := map[string]any{
		"userId":         userID,
		"notificationId": n.ID,
		"props": map[string]any{
			"title":     n.Title,
			"body":      n.Body,
			"type":      n.Type,
			"read":      n.Read,
			"createdAt": graph.FormatTime(n.CreatedAt),
		},
	}
	row, err := s.writeOne(ctx, "insert notification", insertNotificationCypher, params)
	if err != nil {
		return domain.Notification{}, err
	}
	return notificationFromRow(row), nil
}
