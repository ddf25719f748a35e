package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FxQuote is the persisted form of one provider's cross-currency rate for one day.
// Unique on (provider, base_currency, quote_currency, as_of).
type FxQuote struct {
	QuoteID       string          `json:"quoteID"` // Primary Key (UUID)
	Provider      string          `json:"provider"`
	BaseCurrency  string          `json:"baseCurrency"`
	QuoteCurrency string          `json:"quoteCurrency"`
	AsOf          time.Time       `json:"asOf"`
	Rate          decimal.Decimal `json:"rate"`
	SourceRef     string          `json:"sourceRef"`
	AuditFields
}
