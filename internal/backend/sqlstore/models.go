package sqlstore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/350ops/walleybranch/internal/domain"
)

type profileRow struct {
	ID        string `gorm:"primaryKey;size:64"`
	Phone     string `gorm:"size:32"`
	FullName  string
	AvatarURL string `gorm:"column:avatar_url"`
	Username  string `gorm:"size:32"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (profileRow) TableName() string { return "profiles" }

func (r profileRow) toDomain() domain.Profile {
	return domain.Profile{
		ID:        r.ID,
		Phone:     r.Phone,
		FullName:  r.FullName,
		AvatarURL: r.AvatarURL,
		Username:  r.Username,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type cardRow struct {
	ID          string `gorm:"primaryKey;size:64"`
	UserID      string `gorm:"index;size:64;not null"`
	Last4       string `gorm:"column:card_number_last4;size:4;not null"`
	ExpiryMonth int    `gorm:"not null"`
	ExpiryYear  int    `gorm:"not null"`
	ColorScheme string
	Brand       string `gorm:"column:card_brand"`
	Nickname    string
	IsDefault   bool `gorm:"not null;default:false"`
	CreatedAt   time.Time
}

func (cardRow) TableName() string { return "cards" }

func (r cardRow) toDomain() domain.Card {
	return domain.Card{
		ID:          r.ID,
		UserID:      r.UserID,
		Last4:       r.Last4,
		ExpiryMonth: r.ExpiryMonth,
		ExpiryYear:  r.ExpiryYear,
		ColorScheme: r.ColorScheme,
		Brand:       r.Brand,
		Nickname:    r.Nickname,
		IsDefault:   r.IsDefault,
		CreatedAt:   r.CreatedAt,
	}
}

type recipientRow struct {
	ID           string `gorm:"primaryKey;size:64"`
	UserID       string `gorm:"index;size:64;not null"`
	Name         string `gorm:"not null"`
	Email        string
	Phone        string `gorm:"size:32"`
	AvatarURL    string `gorm:"column:avatar_url"`
	AccountLast4 string `gorm:"column:account_last4;size:4"`
	CreatedAt    time.Time
}

func (recipientRow) TableName() string { return "recipients" }

func (r recipientRow) toDomain() domain.Recipient {
	return domain.Recipient{
		ID:           r.ID,
		UserID:       r.UserID,
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		AvatarURL:    r.AvatarURL,
		AccountLast4: r.AccountLast4,
		CreatedAt:    r.CreatedAt,
	}
}

type transactionRow struct {
	ID            string `gorm:"primaryKey;size:64"`
	UserID        string `gorm:"index;size:64;not null"`
	CardID        string `gorm:"size:64"`
	RecipientID   string `gorm:"size:64"`
	MerchantName  string `gorm:"not null"`
	Category      string
	Amount        decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	PaymentMethod string
	IconURL       string `gorm:"column:icon_url"`
	Status        string
	CreatedAt     time.Time
}

func (transactionRow) TableName() string { return "transactions" }

func (r transactionRow) toDomain() domain.Transaction {
	return domain.Transaction{
		ID:            r.ID,
		UserID:        r.UserID,
		CardID:        r.CardID,
		RecipientID:   r.RecipientID,
		MerchantName:  r.MerchantName,
		Category:      r.Category,
		Amount:        r.Amount,
		PaymentMethod: r.PaymentMethod,
		IconURL:       r.IconURL,
		Status:        r.Status,
		CreatedAt:     r.CreatedAt,
	}
}

// No column defaults here: gorm omits zero-valued fields that have one on insert.
type userSettingsRow struct {
	UserID               string              `gorm:"primaryKey;size:64"`
	NotificationsEnabled bool                `gorm:"not null"`
	PushTokens           []string            `gorm:"serializer:json"`
	Language             string              `gorm:"size:16;not null"`
	Theme                string              `gorm:"size:16;not null"`
	SpendingLimit        decimal.NullDecimal `gorm:"type:numeric(14,2)"`
	BiometricEnabled     bool                `gorm:"not null"`
	WeeklyDigest         bool                `gorm:"not null"`
	UpdatedAt            time.Time
}

func (userSettingsRow) TableName() string { return "user_settings" }

func (r userSettingsRow) toDomain() domain.UserSettings {
	tokens := r.PushTokens
	if tokens == nil {
		tokens = []string{}
	}
	return domain.UserSettings{
		UserID:               r.UserID,
		NotificationsEnabled: r.NotificationsEnabled,
		PushTokens:           tokens,
		Language:             r.Language,
		Theme:                r.Theme,
		SpendingLimit:        r.SpendingLimit,
		BiometricEnabled:     r.BiometricEnabled,
		WeeklyDigest:         r.WeeklyDigest,
		UpdatedAt:            r.UpdatedAt,
	}
}

type notificationRow struct {
	ID        string `gorm:"primaryKey;size:64"`
	UserID    string `gorm:"index;size:64;not null"`
	Title     string `gorm:"not null"`
	Body      string
	Type      string `gorm:"size:32"`
	Read      bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
}

func (notificationRow) TableName() string { return "notifications" }

func (r notificationRow) toDomain() domain.Notification {
	return domain.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		Body:      r.Body,
		Type:      r.Type,
		Read:      r.Read,
		CreatedAt: r.CreatedAt,
	}
}

type accountRow struct {
	ID               string          `gorm:"primaryKey;size:64"`
	UserID           string          `gorm:"uniqueIndex;size:64;not null"`
	Balance          decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	AvailableBalance decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Currency         string          `gorm:"size:3;not null"`
	UpdatedAt        time.Time
}

func (accountRow) TableName() string { return "accounts" }

func (r accountRow) toDomain() domain.Account {
	return domain.Account{
		ID:               r.ID,
		UserID:           r.UserID,
		Balance:          r.Balance,
		AvailableBalance: r.AvailableBalance,
		Currency:         r.Currency,
		UpdatedAt:        r.UpdatedAt,
	}
}

func toDomainSlice[R interface{ toDomain() D }, D any](rows []R) []D {
	out := make([]D, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}
