package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// NewCard is the payload for adding a card.
type NewCard struct {
	Last4       string `json:"card_number_last4" validate:"required,len=4,numeric"`
	ExpiryMonth int    `json:"expiry_month" validate:"required,min=1,max=12"`
	ExpiryYear  int    `json:"expiry_year" validate:"required,gte=2000"`
	ColorScheme string `json:"color_scheme,omitempty"`
	Brand       string `json:"card_brand,omitempty"`
	Nickname    string `json:"nickname,omitempty" validate:"max=64"`
	IsDefault   bool   `json:"is_default,omitempty"`
}

// NewRecipient is the payload for adding a payee.
type NewRecipient struct {
	Name         string `json:"name" validate:"required,max=120"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	Phone        string `json:"phone,omitempty" validate:"omitempty,e164"`
	AvatarURL    string `json:"avatar_url,omitempty" validate:"omitempty,url"`
	AccountLast4 string `json:"account_last4,omitempty" validate:"omitempty,len=4,numeric"`
}

// NewTransaction is the payload for appending a transaction.
type NewTransaction struct {
	CardID        string          `json:"card_id,omitempty"`
	RecipientID   string          `json:"recipient_id,omitempty"`
	MerchantName  string          `json:"merchant_name" validate:"required"`
	Category      string          `json:"category,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	IconURL       string          `json:"icon_url,omitempty"`
	Status        string          `json:"status,omitempty"`
	// OccurredAt backdates the record; nil means now.
	OccurredAt    *time.Time      `json:"created_at,omitempty"`
}

// CreatedAt returns OccurredAt in UTC, or now when unset.
func (in NewTransaction) CreatedAt(now time.Time) time.Time {
	if in.OccurredAt != nil && !in.OccurredAt.IsZero() {
		return in.OccurredAt.UTC()
	}
	return now.UTC()
}

// ProfileUpdate carries the profile columns to write. Nil fields are left
// untouched on update and take the backend default on insert.
type ProfileUpdate struct {
	FullName  *string `json:"full_name,omitempty" validate:"omitempty,max=120"`
	Username  *string `json:"username,omitempty" validate:"omitempty,alphanum,max=32"`
	AvatarURL *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,e164"`
}

// UserSettingsUpdate carries the settings columns to write.
type UserSettingsUpdate struct {
	NotificationsEnabled *bool            `json:"notifications_enabled,omitempty"`
	PushTokens           []string         `json:"push_tokens,omitempty"`
	Language             *string          `json:"language,omitempty" validate:"omitempty,bcp47_language_tag"`
	Theme                *string          `json:"theme,omitempty" validate:"omitempty,oneof=light dark system"`
	SpendingLimit        *decimal.Decimal `json:"spending_limit,omitempty"`
	BiometricEnabled     *bool            `json:"biometric_enabled,omitempty"`
	WeeklyDigest         *bool            `json:"weekly_digest,omitempty"`
}

// AccountUpsert is the full account row written on a balance change.
type AccountUpsert struct {
	Balance          decimal.Decimal `json:"balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	Currency         string          `json:"currency" validate:"required,len=3"`
}

// Columns returns the backend column names set in the update, keyed to their values.
func (u ProfileUpdate) Columns() map[string]any {
	cols := map[string]any{}
	if u.FullName != nil {
		cols["full_name"] = *u.FullName
	}
	if u.Username != nil {
		cols["username"] = *u.Username
	}
	if u.AvatarURL != nil {
		cols["avatar_url"] = *u.AvatarURL
	}
	if u.Phone != nil {
		cols["phone"] = *u.Phone
	}
	return cols
}

// Columns returns the backend column names set in the update, keyed to their values.
func (u UserSettingsUpdate) Columns() map[string]any {
	cols := map[string]any{}
	if u.NotificationsEnabled != nil {
		cols["notifications_enabled"] = *u.NotificationsEnabled
	}
	if u.PushTokens != nil {
		cols["push_tokens"] = u.PushTokens
	}
	if u.Language != nil {
		cols["language"] = *u.Language
	}
	if u.Theme != nil {
		cols["theme"] = *u.Theme
	}
	if u.SpendingLimit != nil {
		cols["spending_limit"] = *u.SpendingLimit
	}
	if u.BiometricEnabled != nil {
		cols["biometric_enabled"] = *u.BiometricEnabled
	}
	if u.WeeklyDigest != nil {
		cols["weekly_digest"] = *u.WeeklyDigest
	}
	return cols
}
