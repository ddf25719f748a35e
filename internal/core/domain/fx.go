package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FxQuote is one cross-currency rate for one provider and day.
// Unique per (provider, base, quote, asOf). Derived rows (e.g. USD->X via EUR)
// carry the provenance of the leg they were derived from, not a synthetic
// "derived" tag; this matters for auditability.
type FxQuote struct {
	QuoteID   string          `json:"quoteID"`
	Provider  string          `json:"provider"`
	Base      string          `json:"base"`
	Quote     string          `json:"quote"`
	AsOf      time.Time       `json:"asOf"`
	Rate      decimal.Decimal `json:"rate"`
	SourceRef string          `json:"sourceRef,omitempty"`
	AuditFields
}

// FxFeedSnapshot is one provider's EUR-anchored rate map for one day,
// as decoded by a feed adapter.
type FxFeedSnapshot struct {
	Provider  string
	AsOf      time.Time
	Base      string // anchor currency, EUR for all supported feeds
	Rates     map[string]decimal.Decimal
	SourceRef string
}

// FxDay is the merged, fully-pairwise rate table for one canonical date.
type FxDay struct {
	AsOf     time.Time `json:"asOf"`
	Quotes   []FxQuote `json:"quotes"`
	Inserted int       `json:"inserted"` // rows actually written; zero on a re-run
}
