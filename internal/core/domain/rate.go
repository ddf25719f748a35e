package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateKind identifies which charge a RateRecord contributes to.
type RateKind string

const (
	RateKindDuty      RateKind = "DUTY"
	RateKindVAT       RateKind = "VAT"
	RateKindSurcharge RateKind = "SURCHARGE"
	RateKindFreight   RateKind = "FREIGHT"
)

// RateSource identifies where a RateRecord came from, in precedence terms.
type RateSource string

const (
	SourceOfficial RateSource = "OFFICIAL"
	SourceOverride RateSource = "OVERRIDE"
	SourceDefault  RateSource = "DEFAULT"
)

// ValueUnit says how a RateRecord's Value is to be read.
type ValueUnit string

const (
	UnitPercent     ValueUnit = "PCT"
	UnitAmount      ValueUnit = "AMOUNT"
	UnitAmountPerKg ValueUnit = "AMOUNT_PER_KG"
)

// ScopeKeys identifies the lane a rate applies to. Origin and ProductCode are
// optional; an empty ProductCode means the record is a country-level fact.
type ScopeKeys struct {
	Destination string `json:"destination"`
	Origin      string `json:"origin,omitempty"`
	ProductCode string `json:"productCode,omitempty"`
}

// RateRecord is one versioned, effective-dated rate fact. Records are immutable
// once written; EffectiveTo is closed off when a record is superseded.
// For a given scope+kind, validity windows from the same source must not overlap.
type RateRecord struct {
	RateID        string              `json:"rateID"`
	Scope         ScopeKeys           `json:"scope"`
	Kind          RateKind            `json:"kind"`
	Value         decimal.NullDecimal `json:"value"`
	ValueUnit     ValueUnit           `json:"valueUnit"`
	Currency      string              `json:"currency,omitempty"`    // for AMOUNT / AMOUNT_PER_KG values
	ScheduleRef   string              `json:"scheduleRef,omitempty"` // named rate-kind reference instead of an explicit value
	Source        RateSource          `json:"source"`
	EffectiveFrom time.Time           `json:"effectiveFrom"`
	EffectiveTo   *time.Time          `json:"effectiveTo,omitempty"` // nil = open-ended
	Dataset       string              `json:"dataset"`               // provenance label
	AuditFields
}

// ContainsDate reports whether asOf falls inside the record's [from, to) window.
func (r RateRecord) ContainsDate(asOf time.Time) bool {
	if asOf.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && !asOf.Before(*r.EffectiveTo) {
		return false
	}
	return true
}

// DutyComponentType classifies one leg of a decomposed duty rate.
type DutyComponentType string

const (
	ComponentAdValorem DutyComponentType = "AD_VALOREM"
	ComponentSpecific  DutyComponentType = "SPECIFIC"
	ComponentMinimum   DutyComponentType = "MINIMUM"
	ComponentMaximum   DutyComponentType = "MAXIMUM"
	ComponentOther     DutyComponentType = "OTHER"
)

// DutyComponent is a child of a parent duty RateRecord. A parent with zero
// components is a pure ad-valorem rate equal to its headline value.
type DutyComponent struct {
	ComponentID       string              `json:"componentID"`
	ParentRateID      string              `json:"parentRateID"`
	Type              DutyComponentType   `json:"type"`
	RatePct           decimal.NullDecimal `json:"ratePct"`
	Amount            decimal.NullDecimal `json:"amount"`
	Currency          string              `json:"currency,omitempty"`
	UnitOfMeasure     string              `json:"unitOfMeasure,omitempty"`
	Qualifier         string              `json:"qualifier,omitempty"`
	CombinatorFormula string              `json:"combinatorFormula,omitempty"` // e.g. "max_of(ad_valorem, specific)"
	EffectiveFrom     time.Time           `json:"effectiveFrom"`
	EffectiveTo       *time.Time          `json:"effectiveTo,omitempty"`
}

// ContainsDate reports whether asOf falls inside the component's [from, to) window.
func (c DutyComponent) ContainsDate(asOf time.Time) bool {
	if asOf.Before(c.EffectiveFrom) {
		return false
	}
	if c.EffectiveTo != nil && !asOf.Before(*c.EffectiveTo) {
		return false
	}
	return true
}
