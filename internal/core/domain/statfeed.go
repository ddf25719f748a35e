package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatDimension is one dimension of a statistical feed: a declared name plus a
// position-indexed value list that record keys may point into.
type StatDimension struct {
	Name   string
	Values []string
}

// StatRecord is one raw record of a statistical feed. KeyParts is the compound
// key: each part is either a literal value or a numeric index into one of the
// feed's dimensions; which is which varies by feed and is discovered by the
// dimension auto-mapper.
type StatRecord struct {
	KeyParts      []string
	Destination   string
	Origin        string
	RatePct       decimal.NullDecimal
	Amount        decimal.NullDecimal
	Currency      string
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
}

// DimensionMapping is the chosen interpretation of a feed's compound key,
// computed once per feed version and applied uniformly to all its records.
type DimensionMapping struct {
	Position       int  // key position carrying the product code
	DimensionIndex int  // dimension whose value list the position indexes into; -1 in literal mode
	Literal        bool // true when the position holds the code itself
}

// CandidateRow is a normalized candidate rate row produced by feed ingestion,
// ready for the rate store.
type CandidateRow struct {
	Scope         ScopeKeys
	Kind          RateKind
	Value         decimal.NullDecimal
	ValueUnit     ValueUnit
	Currency      string
	Source        RateSource
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	Dataset       string
}
