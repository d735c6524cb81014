package payments

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// TopUpCents is the fixed top-up charged by the wallet checkout.
const TopUpCents int64 = 500

// ErrNoAccount is returned when completing a top-up before the account is known.
var ErrNoAccount = errors.New("payments: no account to top up")

// BalanceStore reads the cached balance and overwrites it remotely.
type BalanceStore interface {
	Balance() (decimal.Decimal, bool)
	SetBalance(ctx context.Context, amount decimal.Decimal) error
}

// TopUp runs the two halves of a fixed-amount checkout: Prepare before the
// sheet is shown, Complete once the checkout reports success.
type TopUp struct {
	sheets   SheetProvider
	balances BalanceStore
	cents    int64
}

func NewTopUp(sheets SheetProvider, balances BalanceStore) *TopUp {
	return &TopUp{sheets: sheets, balances: balances, cents: TopUpCents}
}

// Amount is the top-up in currency units.
func (t *TopUp) Amount() decimal.Decimal {
	return decimal.New(t.cents, -2)
}

func (t *TopUp) Prepare(ctx context.Context) (SheetParams, error) {
	return t.sheets.CreateSheet(ctx, t.cents)
}

// Complete credits the top-up onto the cached balance and returns the new
// balance. It is not idempotent; call it once per successful checkout.
func (t *TopUp) Complete(ctx context.Context) (decimal.Decimal, error) {
	current, ok := t.balances.Balance()
	if !ok {
		return decimal.Decimal{}, ErrNoAccount
	}
	next := current.Add(t.Amount())
	if err := t.balances.SetBalance(ctx, next); err != nil {
		return decimal.Decimal{}, err
	}
	return next, nil
}
