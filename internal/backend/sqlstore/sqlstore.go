// Package sqlstore is the relational backend, written with gorm against
// postgres in production and sqlite locally.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/350ops/walleybranch/internal/backend"
	"github.com/350ops/walleybranch/internal/domain"
)

// Open connects to driver ("postgres" or "sqlite") at dsn.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return db, nil
}

// Store implements backend.Source over gorm.
type Store struct {
	db    *gorm.DB
	nowFn func() time.Time
}

var (
	_ backend.Source             = (*Store)(nil)
	_ backend.NotificationWriter = (*Store)(nil)
)

// New wraps an open gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db, nowFn: time.Now}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *Store) WithClock(nowFn func() time.Time) *Store {
	if nowFn != nil {
		s.nowFn = nowFn
	}
	return s
}

// Migrate creates or updates every table.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&profileRow{},
		&cardRow{},
		&recipientRow{},
		&transactionRow{},
		&userSettingsRow{},
		&notificationRow{},
		&accountRow{},
	)
}

func (s *Store) now() time.Time {
	return s.nowFn().UTC()
}

func first[R any](ctx context.Context, db *gorm.DB, op string, query string, args ...any) (R, error) {
	var row R
	err := db.WithContext(ctx).Where(query, args...).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, backend.ErrNoRows
	}
	if err != nil {
		return row, fmt.Errorf("%s: %w", op, err)
	}
	return row, nil
}

func newestFirst[R any](ctx context.Context, db *gorm.DB, op, userID string) ([]R, error) {
	var rows []R
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rows, nil
}

func (s *Store) FetchProfile(ctx context.Context, userID string) (domain.Profile, error) {
	row, err := first[profileRow](ctx, s.db, "fetch profile", "id = ?", userID)
	if err != nil {
		return domain.Profile{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) ListCards(ctx context.Context, userID string) ([]domain.Card, error) {
	rows, err := newestFirst[cardRow](ctx, s.db, "list cards", userID)
	if err != nil {
		return nil, err
	}
	return toDomainSlice[cardRow, domain.Card](rows), nil
}

func (s *Store) ListRecipients(ctx context.Context, userID string) ([]domain.Recipient, error) {
	rows, err := newestFirst[recipientRow](ctx, s.db, "list recipients", userID)
	if err != nil {
		return nil, err
	}
	return toDomainSlice[recipientRow, domain.Recipient](rows), nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	rows, err := newestFirst[transactionRow](ctx, s.db, "list transactions", userID)
	if err != nil {
		return nil, err
	}
	return toDomainSlice[transactionRow, domain.Transaction](rows), nil
}

func (s *Store) FetchUserSettings(ctx context.Context, userID string) (domain.UserSettings, error) {
	row, err := first[userSettingsRow](ctx, s.db, "fetch user settings", "user_id = ?", userID)
	if err != nil {
		return domain.UserSettings{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	rows, err := newestFirst[notificationRow](ctx, s.db, "list notifications", userID)
	if err != nil {
		return nil, err
	}
	return toDomainSlice[notificationRow, domain.Notification](rows), nil
}

func (s *Store) FetchAccount(ctx context.Context, userID string) (domain.Account, error) {
	row, err := first[accountRow](ctx, s.db, "fetch account", "user_id = ?", userID)
	if err != nil {
		return domain.Account{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) ClearDefaultCards(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).
		Model(&cardRow{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error
	if err != nil {
		return fmt.Errorf("clear default cards: %w", err)
	}
	return nil
}

func (s *Store) InsertCard(ctx context.Context, userID string, in domain.NewCard) (domain.Card, error) {
	row := cardRow{
		ID:          uuid.NewString(),
		UserID:      userID,
		Last4:       in.Last4,
		ExpiryMonth: in.ExpiryMonth,
		ExpiryYear:  in.ExpiryYear,
		ColorScheme: in.ColorScheme,
		Brand:       in.Brand,
		Nickname:    in.Nickname,
		IsDefault:   in.IsDefault,
		CreatedAt:   s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Card{}, fmt.Errorf("insert card: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) InsertRecipient(ctx context.Context, userID string, in domain.NewRecipient) (domain.Recipient, error) {
	row := recipientRow{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		AvatarURL:    in.AvatarURL,
		AccountLast4: in.AccountLast4,
		CreatedAt:    s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Recipient{}, fmt.Errorf("insert recipient: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) InsertTransaction(ctx context.Context, userID string, in domain.NewTransaction) (domain.Transaction, error) {
	row := transactionRow{
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
		CreatedAt:     in.CreatedAt(s.now()),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return row.toDomain(), nil
}

// UpsertProfile inserts the profile row or updates only the provided columns.
func (s *Store) UpsertProfile(ctx context.Context, userID string, in domain.ProfileUpdate) (domain.Profile, error) {
	now := s.now()
	row := profileRow{ID: userID, CreatedAt: now, UpdatedAt: now}
	if in.FullName != nil {
		row.FullName = *in.FullName
	}
	if in.Username != nil {
		row.Username = *in.Username
	}
	if in.AvatarURL != nil {
		row.AvatarURL = *in.AvatarURL
	}
	if in.Phone != nil {
		row.Phone = *in.Phone
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(updateColumns(in.Columns())),
	}).Create(&row).Error
	if err != nil {
		return domain.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return s.FetchProfile(ctx, userID)
}

// UpsertUserSettings inserts the settings row with defaults or updates only
// the provided columns.
func (s *Store) UpsertUserSettings(ctx context.Context, userID string, in domain.UserSettingsUpdate) (domain.UserSettings, error) {
	row := userSettingsRow{
		UserID:               userID,
		NotificationsEnabled: true,
		PushTokens:           []string{},
		Language:             "en",
		Theme:                "system",
		UpdatedAt:            s.now(),
	}
	if in.NotificationsEnabled != nil {
		row.NotificationsEnabled = *in.NotificationsEnabled
	}
	if in.PushTokens != nil {
		row.PushTokens = in.PushTokens
	}
	if in.Language != nil {
		row.Language = *in.Language
	}
	if in.Theme != nil {
		row.Theme = *in.Theme
	}
	if in.SpendingLimit != nil {
		row.SpendingLimit.Decimal = *in.SpendingLimit
		row.SpendingLimit.Valid = true
	}
	if in.BiometricEnabled != nil {
		row.BiometricEnabled = *in.BiometricEnabled
	}
	if in.WeeklyDigest != nil {
		row.WeeklyDigest = *in.WeeklyDigest
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(updateColumns(in.Columns())),
	}).Create(&row).Error
	if err != nil {
		return domain.UserSettings{}, fmt.Errorf("upsert user settings: %w", err)
	}
	return s.FetchUserSettings(ctx, userID)
}

// UpsertAccount writes the whole account row keyed by user id.
func (s *Store) UpsertAccount(ctx context.Context, userID string, in domain.AccountUpsert) (domain.Account, error) {
	row := accountRow{
		ID:               uuid.NewString(),
		UserID:           userID,
		Balance:          in.Balance,
		AvailableBalance: in.AvailableBalance,
		Currency:         in.Currency,
		UpdatedAt:        s.now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance", "available_balance", "currency", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return domain.Account{}, fmt.Errorf("upsert account: %w", err)
	}
	return s.FetchAccount(ctx, userID)
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	err := s.db.WithContext(ctx).
		Model(&notificationRow{}).
		Where("user_id = ? AND id = ?", userID, notificationID).
		Update("read", true).Error
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// InsertNotification stores a notification as delivered by the server side.
func (s *Store) InsertNotification(ctx context.Context, userID string, n domain.Notification) (domain.Notification, error) {
	row := notificationRow{
		ID:        n.ID,
		UserID:    userID,
		Title:     n.Title,
		Body:      n.Body,
		Type:      n.Type,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.UTC(),
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		row.CreatedAt = s.now()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// updateColumns lists the provided columns plus updated_at, sorted so the
// generated statement is stable.
func updateColumns(cols map[string]any) []string {
	out := make([]string, 0, len(cols)+1)
	for col := range cols {
		out = append(out, col)
	}
	sort.Strings(out)
	return append(out, "updated_at")
}
