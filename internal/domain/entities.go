package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the currency written on every account upsert.
const DefaultCurrency = "USD"

// Profile holds identity display data. One row per user, keyed by the user id.
type Profile struct {
	ID        string    `json:"id" validate:"required"`
	Phone     string    `json:"phone,omitempty"`
	FullName  string    `json:"full_name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Card is payment card metadata. At most one card per user has IsDefault set.
type Card struct {
	ID          string    `json:"id" validate:"required"`
	UserID      string    `json:"user_id" validate:"required"`
	Last4       string    `json:"card_number_last4" validate:"len=4,numeric"`
	ExpiryMonth int       `json:"expiry_month" validate:"min=1,max=12"`
	ExpiryYear  int       `json:"expiry_year" validate:"gte=2000"`
	ColorScheme string    `json:"color_scheme,omitempty"`
	Brand       string    `json:"card_brand,omitempty"`
	Nickname    string    `json:"nickname,omitempty"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
}

// Recipient is a payee contact.
type Recipient struct {
	ID           string    `json:"id" validate:"required"`
	UserID       string    `json:"user_id" validate:"required"`
	Name         string    `json:"name" validate:"required"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	AccountLast4 string    `json:"account_last4,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Transaction is an immutable financial event. Amount is signed: negative
// values are spend, positive values are income.
type Transaction struct {
	ID            string          `json:"id" validate:"required"`
	UserID        string          `json:"user_id" validate:"required"`
	CardID        string          `json:"card_id,omitempty"`
	RecipientID   string          `json:"recipient_id,omitempty"`
	MerchantName  string          `json:"merchant_name" validate:"required"`
	Category      string          `json:"category,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	IconURL       string          `json:"icon_url,omitempty"`
	Status        string          `json:"status,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// UserSettings is the per-user preference bag. Always a single row per user.
type UserSettings struct {
	UserID               string              `json:"user_id" validate:"required"`
	NotificationsEnabled bool                `json:"notifications_enabled"`
	PushTokens           []string            `json:"push_tokens"`
	Language             string              `json:"language"`
	Theme                string              `json:"theme"`
	SpendingLimit        decimal.NullDecimal `json:"spending_limit"`
	BiometricEnabled     bool                `json:"biometric_enabled"`
	WeeklyDigest         bool                `json:"weekly_digest"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// Notification is an inbox item. Read only ever moves from false to true.
type Notification struct {
	ID        string    `json:"id" validate:"required"`
	UserID    string    `json:"user_id" validate:"required"`
	Title     string    `json:"title" validate:"required"`
	Body      string    `json:"body,omitempty"`
	Type      string    `json:"type,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Account is the singleton balance record of a user. It is always written as
// a whole row.
type Account struct {
	ID               string          `json:"id" validate:"required"`
	UserID           string          `json:"user_id" validate:"required"`
	Balance          decimal.Decimal `json:"balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	Currency         string          `json:"currency" validate:"required,len=3"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
