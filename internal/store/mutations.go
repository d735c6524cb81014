package store

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/350ops/walleybranch/internal/domain"
)

func (s *Store) requireSession() (string, uint64, error) {
	userID, gen, ok := s.current()
	if !ok {
		return "", 0, ErrUnauthenticated
	}
	return userID, gen, nil
}

func (s *Store) startMutation(ctx context.Context, name, userID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("user.id", userID)))
}

// commit applies patch to the cache when gen is still the current session
// generation. A false return means the session changed while the write was
// in flight.
func (s *Store) commit(gen uint64, e Entity, patch apply) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	patch(&s.cache)
	s.revisions[e]++
	s.notifyLocked()
	return true
}

// CreateCard inserts a card for the session user and prepends it to the
// cached cards. A default card first clears the default flag on every other
// card, remotely and in the cache.
func (s *Store) CreateCard(ctx context.Context, in domain.NewCard) (domain.Card, error) {
	userID, gen, err := s.requireSession()
	if err != nil {
		return domain.Card{}, err
	}
	if err := domain.Validate(in); err != nil {
		return domain.Card{}, err
	}

	ctx, span := s.startMutation(ctx, "store.CreateCard", userID)
	defer span.End()

	s.cardMu.Lock()
	defer s.cardMu.Unlock()

	if in.IsDefault {
		if err := s.src.ClearDefaultCards(ctx, userID); err != nil {
			recordSpanError(span, err)
			return domain.Card{}, err
		}
	}
	card, err := s.src.InsertCard(ctx, userID, in)
	if err != nil {
		recordSpanError(span, err)
		return domain.Card{}, err
	}

	committed := s.commit(gen, EntityCards, func(c *cache) {
		cards := make([]domain.Card, 0, len(c.cards)+1)
		cards = append(cards, card)
		for _, existing := range c.cards {
			if in.IsDefault {
				existing.IsDefault = false
			}
			cards = append(cards, existing)
		}
		c.cards = cards
	})
	if !committed {
		s.logger.Debug("session changed during card insert", "userId", userID)
	}
	s.publish(ctx, EntityCards, OpCreate, userID, card.ID)
	return card, nil
}

// CreateRecipient inserts a payee for the session user.
func (s *Store) CreateRecipient(ctx context.Context, in domain.NewRecipient) (domain.Recipient, error) {
	userID, gen, err := s.requireSession()
	if err != nil {
		return domain.Recipient{}, err
	}
	in.Normalize()
	if err := domain.Validate(in); err != nil {
		return domain.Recipient{}, err
	}

	ctx, span := s.startMutation(ctx, "store.CreateRecipient", userID)
	defer span.End()

	r, err := s.src.InsertRecipient(ctx, userID, in)
	if err != nil {
		recordSpanError(span, err)
		return domain.Recipient{}, err
	}
	s.commit(gen, EntityRecipients, func(c *cache) {
		c.recipients = append([]domain.Recipient{r}, c.recipients...)
	})
	s.publish(ctx, EntityRecipients, OpCreate, userID, r.ID)
	return r, nil
}

// CreateTransaction appends a transaction for the session user.
func (s *Store) CreateTransaction(ctx context.Context, in domain.NewTransaction) (domain.Transaction, error) {
	userID, gen, err := s.requireSession()
	if err != nil {
		return domain.Transaction{}, err
	}
	if err := domain.Validate(in); err != nil {
		return domain.Transaction{}, err
	}

	ctx, span := s.startMutation(ctx, "store.CreateTransaction", userID)
	defer span.End()

	tx, err := s.src.InsertTransaction(ctx, userID, in)
	if err != nil {
		recordSpanError(span, err)
		return domain.Transaction{}, err
	}
	s.commit(gen, EntityTransactions, func(c *cache) {
		c.transactions = append([]domain.Transaction{tx}, c.transactions...)
	})
	s.publish(ctx, EntityTransactions, OpCreate, userID, tx.ID)
	return tx, nil
}

// UpdateProfile upserts the session user's profile. The cached profile is
// replaced by the row the backend returns.
func (s *Store) UpdateProfile(ctx context.Context, in domain.ProfileUpdate) (domain.Profile, error) {
	userID, gen, err := s.requireSession()
	if err != nil {
		return domain.Profile{}, err
	}
	in.Normalize()
	if err := domain.Validate(in); err != nil {
		return domain.Profile{}, err
	}

	ctx, span := s.startMutation(ctx, "store.UpdateProfile", userID)
	defer span.End()

	p, err := s.src.UpsertProfile(ctx, userID, in)
	if err != nil {
		recordSpanError(span, err)
		return domain.Profile{}, err
	}
	s.commit(gen, EntityProfile, func(c *cache) {
		row := p
		c.profile = &row
	})
	s.publish(ctx, EntityProfile, OpUpdate, userID, p.ID)
	return p, nil
}

// UpdateUserSettings upserts the session user's settings row.
func (s *Store) UpdateUserSettings(ctx context.Context, in domain.UserSettingsUpdate) (domain.UserSettings, error) {
	userID, gen, err := s.requireSession()
	if err != nil {
		return domain.UserSettings{}, err
	}
	if err := domain.Validate(in); err != nil {
		return domain.UserSettings{}, err
	}

	ctx, span := s.startMutation(ctx, "store.UpdateUserSettings", userID)
	defer span.End()

	st, err := s.src.UpsertUserSettings(ctx, userID, in)
	if err != nil {
		recordSpanError(span, err)
		return domain.UserSettings{}, err
	}
	s.commit(gen, EntitySettings, func(c *cache) {
		row := st
		c.settings = &row
	})
	s.publish(ctx, EntitySettings, OpUpdate, userID, st.UserID)
	return st, nil
}

// MarkNotificationRead flags one notification as read. Only the matching
// cached entry changes; an id missing from the cache is logged and ignored.
func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	userID, gen, err := s.requireSession()
	if err != nil {
		return err
	}
	if id == "" {
		return &domain.ValidationError{Fields: map[string]string{"id": "required"}}
	}

	ctx, span := s.startMutation(ctx, "store.MarkNotificationRead", userID)
	defer span.End()
	span.SetAttributes(attribute.String("notification.id", id))

	if err := s.src.MarkNotificationRead(ctx, userID, id); err != nil {
		recordSpanError(span, err)
		return err
	}

	s.mu.Lock()
	found, changed := false, false
	if s.gen == gen {
		for i, n := range s.cache.notifications {
			if n.ID != id {
				continue
			}
			found = true
			if !n.Read {
				next := append([]domain.Notification(nil), s.cache.notifications...)
				next[i].Read = true
				s.cache.notifications = next
				s.revisions[EntityNotifications]++
				s.notifyLocked()
				changed = true
			}
			break
		}
	}
	s.mu.Unlock()

	if !found {
		s.logger.Info("marked notification not in cache", "userId", userID, "notificationId", id)
	}
	if changed {
		s.publish(ctx, EntityNotifications, OpMarkRead, userID, id)
	}
	return nil
}

// SetBalance overwrites the session user's account with balance and
// available balance both set to amount. Concurrent callers race; the last
// write wins.
func (s *Store) SetBalance(ctx context.Context, amount decimal.Decimal) error {
	userID, gen, err := s.requireSession()
	if err != nil {
		return err
	}
	in := domain.AccountUpsert{
		Balance:          amount,
		AvailableBalance: amount,
		Currency:         domain.DefaultCurrency,
	}
	if err := domain.Validate(in); err != nil {
		return err
	}

	ctx, span := s.startMutation(ctx, "store.SetBalance", userID)
	defer span.End()
	span.SetAttributes(attribute.String("account.balance", amount.StringFixed(2)))

	a, err := s.src.UpsertAccount(ctx, userID, in)
	if err != nil {
		recordSpanError(span, err)
		return err
	}
	s.commit(gen, EntityAccount, func(c *cache) {
		row := a
		c.account = &row
		c.accountKnownAbsent = false
	})
	s.publish(ctx, EntityAccount, OpUpdate, userID, a.ID)
	return nil
}

// Balance returns the cached account balance, if an account is cached.
func (s *Store) Balance() (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache.account == nil {
		return decimal.Zero, false
	}
	return s.cache.account.Balance, true
}
