package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradekit/landed_cost_app/internal/apperrors"
	"github.com/tradekit/landed_cost_app/internal/core/domain"
)

// ComposeInput carries the evaluation context for one duty composition.
type ComposeInput struct {
	// CustomsValue is the ad-valorem base, already in the charge currency.
	CustomsValue decimal.Decimal
	// Quantity multiplies specific (per-unit) components.
	Quantity decimal.Decimal
	// ChargeCurrency is the currency the composed charge is expressed in.
	ChargeCurrency string
	// AsOf filters component validity windows.
	AsOf time.Time
	// Convert converts a component amount from its own currency into the
	// charge currency at the pinned as-of date.
	Convert func(amount decimal.Decimal, fromCurrency string) (decimal.Decimal, error)
}

var hundred = decimal.NewFromInt(100)

// ComposeDuty merges a parent duty rate and its components into one effective
// charge. No rounding happens here; the result stays at full precision and is
// rounded once at presentation.
//
// Rules: a parent with zero valid components is a pure ad-valorem rate equal
// to its headline value. Otherwise ad-valorem, specific and other flat legs
// are summed; a combinator formula referencing the ad-valorem and specific
// legs replaces their sum with max/min of the two; minimum and maximum
// components clamp the running total last. Component order never changes the
// result.
func ComposeDuty(parent domain.RateRecord, components []domain.DutyComponent, in ComposeInput) (decimal.Decimal, error) {
	var valid []domain.DutyComponent
	for _, c := range components {
		if c.ContainsDate(in.AsOf) {
			valid = append(valid, c)
		}
	}

	if len(valid) == 0 {
		if !parent.Value.Valid {
			return decimal.Zero, fmt.Errorf("%w: duty rate %s has neither value nor components", apperrors.ErrComputation, parent.RateID)
		}
		return parent.Value.Decimal.Div(hundred).Mul(in.CustomsValue), nil
	}

	var (
		adValorem  = decimal.Zero
		specific   = decimal.Zero
		otherFlat  = decimal.Zero
		minClamp   *decimal.Decimal
		maxClamp   *decimal.Decimal
		combinator string
	)

	for _, c := range valid {
		if c.CombinatorFormula != "" {
			combinator = c.CombinatorFormula
		}
		switch c.Type {
		case domain.ComponentAdValorem:
			if !c.RatePct.Valid {
				return decimal.Zero, fmt.Errorf("%w: ad-valorem component %s missing rate", apperrors.ErrComputation, c.ComponentID)
			}
			adValorem = adValorem.Add(c.RatePct.Decimal.Div(hundred).Mul(in.CustomsValue))

		case domain.ComponentSpecific, domain.ComponentOther:
			amount, err := componentAmount(c, in)
			if err != nil {
				return decimal.Zero, err
			}
			if c.Type == domain.ComponentSpecific {
				specific = specific.Add(amount.Mul(in.Quantity))
			} else {
				otherFlat = otherFlat.Add(amount)
			}

		case domain.ComponentMinimum:
			amount, err := componentAmount(c, in)
			if err != nil {
				return decimal.Zero, err
			}
			// Multiple minimums collapse to the tightest (highest) floor.
			if minClamp == nil || amount.GreaterThan(*minClamp) {
				minClamp = &amount
			}

		case domain.ComponentMaximum:
			amount, err := componentAmount(c, in)
			if err != nil {
				return decimal.Zero, err
			}
			if maxClamp == nil || amount.LessThan(*maxClamp) {
				maxClamp = &amount
			}

		default:
			return decimal.Zero, fmt.Errorf("%w: unknown duty component type %q", apperrors.ErrComputation, c.Type)
		}
	}

	var charge decimal.Decimal
	switch combinatorOp(combinator) {
	case "max":
		charge = decimal.Max(adValorem, specific).Add(otherFlat)
	case "min":
		charge = decimal.Min(adValorem, specific).Add(otherFlat)
	default:
		charge = adValorem.Add(specific).Add(otherFlat)
	}

	if minClamp != nil && charge.LessThan(*minClamp) {
		charge = *minClamp
	}
	if maxClamp != nil && charge.GreaterThan(*maxClamp) {
		charge = *maxClamp
	}
	return charge, nil
}

// componentAmount converts a component's monetary amount into the charge currency.
func componentAmount(c domain.DutyComponent, in ComposeInput) (decimal.Decimal, error) {
	if !c.Amount.Valid {
		return decimal.Zero, fmt.Errorf("%w: component %s missing amount", apperrors.ErrComputation, c.ComponentID)
	}
	amount := c.Amount.Decimal
	if c.Currency == "" || c.Currency == in.ChargeCurrency {
		return amount, nil
	}
	if in.Convert == nil {
		return decimal.Zero, fmt.Errorf("%w: component %s needs conversion from %s but no converter given", apperrors.ErrComputation, c.ComponentID, c.Currency)
	}
	converted, err := in.Convert(amount, c.Currency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("converting component %s from %s: %w", c.ComponentID, c.Currency, err)
	}
	return converted, nil
}

// combinatorOp extracts the operation from formulas like
// "max_of(ad_valorem, specific)" / "min_of(ad_valorem, specific)".
func combinatorOp(formula string) string {
	f := strings.ToLower(strings.TrimSpace(formula))
	switch {
	case strings.HasPrefix(f, "max_of"):
		return "max"
	case strings.HasPrefix(f, "min_of"):
		return "min"
	default:
		return ""
	}
}
