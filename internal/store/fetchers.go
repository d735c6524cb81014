package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/350ops/walleybranch/internal/backend"
	"github.com/350ops/walleybranch/internal/domain"
)

// apply patches one cache slot with a fetched value.
type apply func(c *cache)

// fetcher performs the scoped read for one entity and returns the patch to
// apply, plus the validation errors of rows it dropped.
type fetcher func(ctx context.Context, src backend.Source, userID string) (apply, []error, error)

var fetchers = map[Entity]fetcher{
	EntityProfile:       fetchProfile,
	EntityCards:         fetchCards,
	EntityRecipients:    fetchRecipients,
	EntityTransactions:  fetchTransactions,
	EntitySettings:      fetchSettings,
	EntityNotifications: fetchNotifications,
	EntityAccount:       fetchAccount,
}

// singleton adapts a read-single call: ErrNoRows yields a nil value.
func singleton[T any](v T, err error) (*T, error) {
	if errors.Is(err, backend.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if verr := domain.Validate(v); verr != nil {
		return nil, fmt.Errorf("invalid row: %w", verr)
	}
	return &v, nil
}

// collection drops invalid rows, returning their validation errors.
func collection[T any](rows []T, err error) ([]T, []error, error) {
	if err != nil {
		return nil, nil, err
	}
	kept, dropped := domain.FilterValid(rows)
	return kept, dropped, nil
}

func fetchProfile(ctx context.Context, src backend.Source, userID string) (apply, []error, error) {
	p, err := singleton(src.FetchProfile(ctx, userID))
	if err != nil {
		return nil, nil, err
	}
	return func(c *cache) { c.profile = p }, nil, nil
}

func fetchCards(ctx context.Context, src backend.Source, userID string) (apply, []error, error) {
	rows, dropped, err := collection(src.ListCards(ctx, userID))
	if err != nil {
		return nil, nil, err
	}
	return func(c *cache) { c.cards = rows }, dropped, nil
}

func fetchRecipients(ctx context.Context, src backend.Source, userID string) (apply, []error, error) {
	rows, dropped, err := collection(src.ListRecipients(ctx, userID))
	if err != nil {
		return nil, nil, err
	}
	return func(c *cache) { c.recipients = rows }, dropped, nil
}

func fetchTransactions(ctx context.Context, src backend.Source, userID string) (apply, []error, error) {
	rows, dropped, err := collection(src.ListTransactions(ctx, userID))
	if err != nil {
		return nil, nil, err
	}
	return func(c *cache) { c.transactions = rows }, dropped, nil
}

func fetchSettings(ctx context.Context, src backend.Source, userID string) (apply, []error, error) {
	s, err := singleton(src.FetchUserSettings(ctx, userID))
	if err != nil {
		return nil, nil, err
	}
	return func(c *cache) { c.settings = s }, nil, nil
}

func fetchNotifications(ctx context.Context, src backend.Source, userID string) (apply, []error, error) {
	rows, dropped, err := collection(src.ListNotifications(ctx, userID))
	if err != nil {
		return nil, nil, err
	}
	return func(c *cache) { c.notifications = rows }, dropped, nil
}

func fetchAccount(ctx context.Context, src backend.Source, userID string) (apply, []error, error) {
	a, err := singleton(src.FetchAccount(ctx, userID))
	if err != nil {
		return nil, nil, err
	}
	return func(c *cache) {
		c.account = a
		c.accountKnownAbsent = a == nil
	}, nil, nil
}
