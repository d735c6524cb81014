package seed

import "github.com/shopspring/decimal"

// Config drives the demo wallet generator.
type Config struct {
	Cards          int
	Recipients     int
	Transactions   int
	Notifications  int
	Months         int
	IncomeChance   float64
	OpeningBalance decimal.Decimal
	Seed           int64
}

// DefaultConfig returns a wallet that fills every screen of the app.
func DefaultConfig() Config {
	return Config{
		Cards:          3,
		Recipients:     6,
		Transactions:   40,
		Notifications:  5,
		Months:         6,
		IncomeChance:   0.15,
		OpeningBalance: decimal.RequireFromString("325.00"),
		Seed:           42,
	}
}
