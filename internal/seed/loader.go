package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/350ops/walleybranch/internal/backend"
	"github.com/350ops/walleybranch/internal/domain"
)

// TaskError accumulates the errors of a bulk load.
type TaskError struct {
	Errors []error
}

func (e *TaskError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := "multiple errors:"
	for _, err := range e.Errors {
		msg += " " + err.Error() + ";"
	}
	return msg
}

func (e *TaskError) Unwrap() []error {
	return e.Errors
}

func (e *TaskError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *TaskError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Result counts what a load wrote.
type Result struct {
	Cards         int
	Recipients    int
	Transactions  int
	Notifications int
}

// Loader writes generated wallets through a backend using a worker pool.
type Loader struct {
	src     backend.Source
	logger  *slog.Logger
	workers int
}

// NewLoader creates a Loader with the provided concurrency.
func NewLoader(src backend.Source, logger *slog.Logger, workers int) *Loader {
	if workers <= 0 {
		workers = 4
	}
	return &Loader{src: src, logger: logger.With("component", "seed"), workers: workers}
}

// Load writes ds in dependency order: singletons, cards and recipients, then
// the transactions that reference them. Notifications are skipped when the
// backend cannot write them. Errors of a stage are aggregated into a
// *TaskError and stop the following stages.
func (l *Loader) Load(ctx context.Context, ds Dataset) (Result, error) {
	var res Result
	userID := ds.UserID

	if _, err := l.src.UpsertProfile(ctx, userID, ds.Profile); err != nil {
		return res, fmt.Errorf("seed profile: %w", err)
	}
	if _, err := l.src.UpsertUserSettings(ctx, userID, ds.Settings); err != nil {
		return res, fmt.Errorf("seed settings: %w", err)
	}
	account := domain.AccountUpsert{Balance: ds.Balance, AvailableBalance: ds.Balance, Currency: domain.DefaultCurrency}
	if _, err := l.src.UpsertAccount(ctx, userID, account); err != nil {
		return res, fmt.Errorf("seed account: %w", err)
	}

	cardIDs := make([]string, len(ds.Cards))
	recipientIDs := make([]string, len(ds.Recipients))
	var mu sync.Mutex

	if err := l.src.ClearDefaultCards(ctx, userID); err != nil {
		return res, fmt.Errorf("seed cards: %w", err)
	}
	err := l.run(ctx, len(ds.Cards), func(idx int) error {
		card, err := l.src.InsertCard(ctx, userID, ds.Cards[idx])
		if err != nil {
			return fmt.Errorf("seed card %d: %w", idx, err)
		}
		mu.Lock()
		cardIDs[idx] = card.ID
		res.Cards++
		mu.Unlock()
		return nil
	})
	if err != nil {
		return res, err
	}

	err = l.run(ctx, len(ds.Recipients), func(idx int) error {
		r, err := l.src.InsertRecipient(ctx, userID, ds.Recipients[idx])
		if err != nil {
			return fmt.Errorf("seed recipient %d: %w", idx, err)
		}
		mu.Lock()
		recipientIDs[idx] = r.ID
		res.Recipients++
		mu.Unlock()
		return nil
	})
	if err != nil {
		return res, err
	}

	err = l.run(ctx, len(ds.Transactions), func(idx int) error {
		tx := ds.Transactions[idx]
		in := tx.NewTransaction
		if tx.Card >= 0 && tx.Card < len(cardIDs) {
			in.CardID = cardIDs[tx.Card]
		}
		if tx.Recipient >= 0 && tx.Recipient < len(recipientIDs) {
			in.RecipientID = recipientIDs[tx.Recipient]
		}
		if _, err := l.src.InsertTransaction(ctx, userID, in); err != nil {
			return fmt.Errorf("seed transaction %d: %w", idx, err)
		}
		mu.Lock()
		res.Transactions++
		mu.Unlock()
		return nil
	})
	if err != nil {
		return res, err
	}

	writer, ok := l.src.(backend.NotificationWriter)
	if !ok {
		if len(ds.Notifications) > 0 {
			l.logger.Warn("backend cannot write notifications; skipping", "userId", userID, "count", len(ds.Notifications))
		}
		return res, nil
	}
	err = l.run(ctx, len(ds.Notifications), func(idx int) error {
		if _, err := writer.InsertNotification(ctx, userID, ds.Notifications[idx]); err != nil {
			return fmt.Errorf("seed notification %d: %w", idx, err)
		}
		mu.Lock()
		res.Notifications++
		mu.Unlock()
		return nil
	})
	return res, err
}

func (l *Loader) run(ctx context.Context, total int, workerFn func(idx int) error) error {
	if total == 0 {
		return nil
	}
	indexCh := make(chan int)
	errCh := make(chan error, total)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range indexCh {
			if err := workerFn(idx); err != nil {
				errCh <- err
			}
		}
	}

	for i := 0; i < l.workers; i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for i := 0; i < total; i++ {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	close(errCh)

	if err := ctx.Err(); err != nil {
		return err
	}
	var taskErr TaskError
	for err := range errCh {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		taskErr.append(err)
	}
	return taskErr.asError()
}
