package models

import "time"

// AutoImportOperation tracks one open-to-close lifecycle of a position
// for a (broker account, ticker, currency) triple. At most one open
// operation exists per triple at any time.
type AutoImportOperation struct {
	ID              string    `json:"id" badgerhold:"key"`
	BrokerAccountID string    `json:"broker_account_id"`
	TickerID        string    `json:"ticker_id"`
	CurrencyID      string    `json:"currency_id"`
	IsOpen          bool      `json:"is_open"`

	// Realized is cumulative realized P&L attributed to the operation;
	// RealizedToday is the delta applied by the latest snapshot.
	Realized      float64 `json:"realized"`
	RealizedToday float64 `json:"realized_today"`

	// CapitalDeployed is cumulative capital committed while the
	// operation has been open; CapitalDeployedToday is the day's delta.
	CapitalDeployed      float64 `json:"capital_deployed"`
	CapitalDeployedToday float64 `json:"capital_deployed_today"`

	// Performance is Realized over CapitalDeployed, as a percentage.
	Performance float64 `json:"performance"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
