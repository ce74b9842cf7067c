package models

import "time"

// PreferenceDefaultCurrency is the key of the user's default currency
// preference.
const PreferenceDefaultCurrency = "default_currency"

// Preference is one user-level key/value setting.
type Preference struct {
	Key       string    `json:"key" badgerhold:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
