package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateRecord is the persisted form of one effective-dated rate fact.
// Note: Value uses a precise decimal type, never binary float.
type RateRecord struct {
	RateID        string              `json:"rateID"` // Primary Key (UUID)
	Destination   string              `json:"destination"`
	Origin        string              `json:"origin"`      // empty = any origin
	ProductCode   string              `json:"productCode"` // empty = country-level record
	Kind          string              `json:"kind"`        // DUTY | VAT | SURCHARGE | FREIGHT
	Value         decimal.NullDecimal `json:"value"`
	ValueUnit     string              `json:"valueUnit"`
	Currency      string              `json:"currency"`
	ScheduleRef   string              `json:"scheduleRef"`
	Source        string              `json:"source"` // OFFICIAL | OVERRIDE | DEFAULT
	EffectiveFrom time.Time           `json:"effectiveFrom"`
	EffectiveTo   *time.Time          `json:"effectiveTo"` // NULL = open-ended
	Dataset       string              `json:"dataset"`
	AuditFields
}

// DutyComponent is the persisted form of one leg of a decomposed duty rate.
type DutyComponent struct {
	ComponentID       string              `json:"componentID"`  // Primary Key (UUID)
	ParentRateID      string              `json:"parentRateID"` // FK -> RateRecord.rateID
	Type              string              `json:"type"`         // AD_VALOREM | SPECIFIC | MINIMUM | MAXIMUM | OTHER
	RatePct           decimal.NullDecimal `json:"ratePct"`
	Amount            decimal.NullDecimal `json:"amount"`
	Currency          string              `json:"currency"`
	UnitOfMeasure     string              `json:"unitOfMeasure"`
	Qualifier         string              `json:"qualifier"`
	CombinatorFormula string              `json:"combinatorFormula"`
	EffectiveFrom     time.Time           `json:"effectiveFrom"`
	EffectiveTo       *time.Time          `json:"effectiveTo"`
}
