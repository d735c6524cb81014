// Package backend defines the remote data API consumed by the sync store.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/350ops/walleybranch/internal/domain"
)

// ErrNoRows is returned by singleton reads when the user has no row yet.
// Callers treat it as a null result, not as a failure.
var ErrNoRows = errors.New("backend: no rows")

// Source is the contract every backend implements. All reads are scoped to a
// single user id; list reads are ordered newest first.
type Source interface {
	FetchProfile(ctx context.Context, userID string) (domain.Profile, error)
	ListCards(ctx context.Context, userID string) ([]domain.Card, error)
	ListRecipients(ctx context.Context, userID string) ([]domain.Recipient, error)
	ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error)
	FetchUserSettings(ctx context.Context, userID string) (domain.UserSettings, error)
	ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error)
	FetchAccount(ctx context.Context, userID string) (domain.Account, error)

	ClearDefaultCards(ctx context.Context, userID string) error
	InsertCard(ctx context.Context, userID string, in domain.NewCard) (domain.Card, error)
	InsertRecipient(ctx context.Context, userID string, in domain.NewRecipient) (domain.Recipient, error)
	InsertTransaction(ctx context.Context, userID string, in domain.NewTransaction) (domain.Transaction, error)
	UpsertProfile(ctx context.Context, userID string, in domain.ProfileUpdate) (domain.Profile, error)
	UpsertUserSettings(ctx context.Context, userID string, in domain.UserSettingsUpdate) (domain.UserSettings, error)
	UpsertAccount(ctx context.Context, userID string, in domain.AccountUpsert) (domain.Account, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error

	Ping(ctx context.Context) error
}

// RemoteError is the error payload returned by a backend call.
type RemoteError struct {
	Op      string
	Status  int
	Code    string
	Message string
	Details string
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s [%s]", e.Op, msg, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

// NotificationWriter is implemented by backends that can deliver
// notifications directly. Clients never create notifications; seeding and
// server-side jobs do.
type NotificationWriter interface {
	InsertNotification(ctx context.Context, userID string, n domain.Notification) (domain.Notification, error)
}
