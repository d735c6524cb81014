package graphstore

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/350ops/walleybranch/internal/domain"
	"github.com/350ops/walleybranch/internal/graph"
)

// graphKey maps a snake_case column name to the camelCase property name
// used on graph nodes.
func graphKey(column string) string {
	parts := strings.Split(column, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

func decimalOf(row graph.Record, key string) decimal.Decimal {
	switch v := row[key].(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case int64:
		return decimal.NewFromInt(v)
	}
	d, err := decimal.NewFromString(row.String(key))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func profileFromRow(row graph.Record) domain.Profile {
	return domain.Profile{
		ID:        row.String("userId"),
		Phone:     row.String("phone"),
		FullName:  row.String("fullName"),
		AvatarURL: row.String("avatarUrl"),
		Username:  row.String("username"),
		CreatedAt: row.Time("createdAt"),
		UpdatedAt: row.Time("updatedAt"),
	}
}

func cardFromRow(row graph.Record) domain.Card {
	return domain.Card{
		ID:          row.String("cardId"),
		UserID:      row.String("userId"),
		Last4:       row.String("last4"),
		ExpiryMonth: row.Int("expiryMonth"),
		ExpiryYear:  row.Int("expiryYear"),
		ColorScheme: row.String("colorScheme"),
		Brand:       row.String("brand"),
		Nickname:    row.String("nickname"),
		IsDefault:   row.Bool("isDefault"),
		CreatedAt:   row.Time("createdAt"),
	}
}

func recipientFromRow(row graph.Record) domain.Recipient {
	return domain.Recipient{
		ID:           row.String("recipientId"),
		UserID:       row.String("userId"),
		Name:         row.String("name"),
		Email:        row.String("email"),
		Phone:        row.String("phone"),
		AvatarURL:    row.String("avatarUrl"),
		AccountLast4: row.String("accountLast4"),
		CreatedAt:    row.Time("createdAt"),
	}
}

func transactionFromRow(row graph.Record) domain.Transaction {
	return domain.Transaction{
		ID:            row.String("transactionId"),
		UserID:        row.String("userId"),
		CardID:        row.String("cardId"),
		RecipientID:   row.String("recipientId"),
		MerchantName:  row.String("merchantName"),
		Category:      row.String("category"),
		Amount:        decimalOf(row, "amount"),
		PaymentMethod: row.String("paymentMethod"),
		IconURL:       row.String("iconUrl"),
		Status:        row.String("status"),
		CreatedAt:     row.Time("createdAt"),
	}
}

func settingsFromRow(row graph.Record) domain.UserSettings {
	s := domain.UserSettings{
		UserID:               row.String("userId"),
		NotificationsEnabled: row.Bool("notificationsEnabled"),
		PushTokens:           row.Strings("pushTokens"),
		Language:             row.String("language"),
		Theme:                row.String("theme"),
		BiometricEnabled:     row.Bool("biometricEnabled"),
		WeeklyDigest:         row.Bool("weeklyDigest"),
		UpdatedAt:            row.Time("updatedAt"),
	}
	if s.PushTokens == nil {
		s.PushTokens = []string{}
	}
	if row["spendingLimit"] != nil {
		s.SpendingLimit = decimal.NewNullDecimal(decimalOf(row, "spendingLimit"))
	}
	return s
}

func notificationFromRow(row graph.Record) domain.Notification {
	return domain.Notification{
		ID:        row.String("notificationId"),
		UserID:    row.String("userId"),
		Title:     row.String("title"),
		Body:      row.String("body"),
		Type:      row.String("type"),
		Read:      row.Bool("read"),
		CreatedAt: row.Time("createdAt"),
	}
}

func accountFromRow(row graph.Record) domain.Account {
	return domain.Account{
		ID:               row.String("accountId"),
		UserID:           row.String("userId"),
		Balance:          decimalOf(row, "balance"),
		AvailableBalance: decimalOf(row, "availableBalance"),
		Currency:         row.String("currency"),
		UpdatedAt:        row.Time("updatedAt"),
	}
}
