package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradekit/landed_cost_app/internal/apperrors"
	"github.com/tradekit/landed_cost_app/internal/core/domain"
	"github.com/tradekit/landed_cost_app/internal/core/ports"
	portssvc "github.com/tradekit/landed_cost_app/internal/core/ports/services"
	"github.com/tradekit/landed_cost_app/internal/utils"
)

// volumetricDivisor converts cm^3 to volumetric kg for air freight.
var volumetricDivisor = decimal.NewFromInt(5000)

// QuoteConfig is the orchestrator's destination policy surface.
type QuoteConfig struct {
	// StrictFreshness downgrades any component backed by a stale dataset to
	// missing, regardless of its resolver status.
	StrictFreshness bool
	// StaleDatasets flags dataset labels currently considered stale.
	StaleDatasets map[string]bool
	// CheckoutVATThreshold is the item-value ceiling (in the reference
	// currency EUR) for checkout-collected VAT eligibility.
	CheckoutVATThreshold decimal.Decimal
	// CheckoutDestinations lists destinations participating in the
	// checkout-collection scheme.
	CheckoutDestinations map[string]bool
	// DeMinimis maps destination to its threshold policy.
	DeMinimis map[string]domain.DeMinimisPolicy
	// VATBasis maps destination to what import VAT is charged on;
	// destinations absent here default to CIF plus duty.
	VATBasis map[string]domain.VATBasis
}

// QuoteService composes resolvers, the duty composer and the FX table into a
// single priced, explainable landed-cost result. It performs a single pass
// with no persistence of intermediate state; caching happens only through the
// idempotency controller wrapping it.
type QuoteService struct {
	BaseService
	store    ports.RateStore
	resolver portssvc.RateResolverSvcFacade
	fx       portssvc.FxSvcFacade
	cfg      QuoteConfig
}

// NewQuoteService creates a new QuoteService.
func NewQuoteService(store ports.RateStore, resolver portssvc.RateResolverSvcFacade, fx portssvc.FxSvcFacade, cfg QuoteConfig) *QuoteService {
	return &QuoteService{store: store, resolver: resolver, fx: fx, cfg: cfg}
}

// quoteState accumulates the single-pass computation.
type quoteState struct {
	asOf     time.Time
	currency string
	missing  []string
	policy   []string
	sources  map[string]string
}

func (st *quoteState) markMissing(component string) {
	for _, m := range st.missing {
		if m == component {
			return
		}
	}
	st.missing = append(st.missing, component)
}

// CalculateQuote computes the landed cost for one shipment.
func (s *QuoteService) CalculateQuote(ctx context.Context, input domain.QuoteInput) (*domain.QuoteResult, error) {
	if err := validateQuoteInput(&input); err != nil {
		return nil, err
	}

	st := &quoteState{
		asOf:     dateOnly(input.AsOf),
		currency: input.DestinationCurrency,
		sources:  make(map[string]string),
	}

	// Chargeable weight: max of actual vs volumetric for air, actual otherwise.
	weight := chargeableWeight(input)

	freight, freightConf := s.resolveFreight(ctx, input, weight, st)
	itemValueDest, itemConf := s.convertComponent(ctx, "item_value", input.ItemValue, input.ItemCurrency, st)

	cif := itemValueDest.Add(freight)
	cifConf := domain.WorseConfidence(itemConf, freightConf)

	suppressDuty, suppressVAT := s.applyDeMinimis(ctx, input, cif, itemValueDest, st)

	duty, dutyConf := s.resolveDuty(ctx, input, cif, suppressDuty, st)

	vat, checkoutVAT, vatConf := s.resolveVAT(ctx, input, cif, duty, itemValueDest, suppressVAT, st)

	fees, feesConf := s.resolveSurcharges(ctx, input, cif, st)

	total := cif.Add(duty).Add(vat).Add(fees)
	if checkoutVAT != nil {
		total = total.Add(checkoutVAT.Amount)
	}

	overall := cifConf
	for _, c := range []domain.Confidence{dutyConf, vatConf, feesConf} {
		overall = domain.WorseConfidence(overall, c)
	}
	if checkoutVAT != nil {
		overall = domain.WorseConfidence(overall, checkoutVAT.Confidence)
	}

	// Round once, at presentation, with currency-specific decimal places.
	round := func(d decimal.Decimal) decimal.Decimal {
		return utils.RoundForCurrency(d, st.currency)
	}
	result := &domain.QuoteResult{
		Currency:          st.currency,
		CIF:               domain.ComponentCharge{Amount: round(cif), Confidence: cifConf},
		Duty:              domain.ComponentCharge{Amount: round(duty), Confidence: dutyConf},
		VAT:               domain.ComponentCharge{Amount: round(vat), Confidence: vatConf},
		Fees:              domain.ComponentCharge{Amount: round(fees), Confidence: feesConf},
		Total:             round(total),
		OverallConfidence: overall,
		MissingComponents: st.missing,
		Policy:            strings.Join(st.policy, " "),
		Sources:           st.sources,
		AsOf:              st.asOf,
	}
	if checkoutVAT != nil {
		rounded := domain.ComponentCharge{Amount: round(checkoutVAT.Amount), Confidence: checkoutVAT.Confidence}
		result.CheckoutVAT = &rounded
	}
	if result.MissingComponents == nil {
		result.MissingComponents = []string{}
	}

	s.LogInfo(ctx, "Quote computed",
		slog.String("destination", input.Destination), slog.String("origin", input.Origin),
		slog.String("total", result.Total.String()), slog.String("confidence", string(overall)))
	return result, nil
}

func validateQuoteInput(input *domain.QuoteInput) error {
	if input.Destination == "" {
		return apperrors.NewValidationError("destination is required")
	}
	if input.DestinationCurrency == "" {
		return apperrors.NewValidationError("destination currency is required")
	}
	if input.ItemValue.LessThanOrEqual(decimal.Zero) {
		return apperrors.NewValidationError("item value must be positive")
	}
	if input.ItemCurrency == "" {
		return apperrors.NewValidationError("item currency is required")
	}
	code, ok := NormalizeProductCode(input.ProductCode)
	if !ok {
		return apperrors.NewValidationError("product code must resolve to a 6-digit code")
	}
	input.ProductCode = code
	if input.Quantity.LessThanOrEqual(decimal.Zero) {
		input.Quantity = decimal.NewFromInt(1)
	}
	if input.AsOf.IsZero() {
		input.AsOf = time.Now()
	}
	return nil
}

func chargeableWeight(input domain.QuoteInput) decimal.Decimal {
	actual := input.ActualWeightKg
	if input.TransportMode != domain.TransportAir || input.Dimensions == nil {
		return actual
	}
	volumetric := input.Dimensions.LengthCm.
		Mul(input.Dimensions.WidthCm).
		Mul(input.Dimensions.HeightCm).
		Div(volumetricDivisor)
	return decimal.Max(actual, volumetric)
}

// convertComponent converts an amount into the destination currency at the
// pinned as-of date. A missing FX rate degrades the component to missing.
func (s *QuoteService) convertComponent(ctx context.Context, component string, amount decimal.Decimal, fromCurrency string, st *quoteState) (decimal.Decimal, domain.Confidence) {
	if fromCurrency == st.currency {
		return amount, domain.ConfidenceAuthoritative
	}
	quote, err := s.fx.GetRate(ctx, fromCurrency, st.currency, st.asOf)
	if err != nil {
		s.LogWarn(ctx, "FX rate unavailable",
			slog.String("component", component), slog.String("from", fromCurrency),
			slog.String("to", st.currency), slog.Time("as_of", st.asOf))
		st.markMissing(component)
		return decimal.Zero, domain.ConfidenceMissing
	}
	st.sources["fx:"+fromCurrency+st.currency] = quote.Provider
	return amount.Mul(quote.Rate), domain.ConfidenceAuthoritative
}

func (s *QuoteService) resolveFreight(ctx context.Context, input domain.QuoteInput, weight decimal.Decimal, st *quoteState) (decimal.Decimal, domain.Confidence) {
	if input.FreightAmount.Valid {
		st.sources["freight"] = "caller"
		return input.FreightAmount.Decimal, domain.ConfidenceAuthoritative
	}

	scope := domain.ScopeKeys{Destination: input.Destination, Origin: input.Origin}
	resolved, err := s.resolver.Resolve(ctx, scope, domain.RateKindFreight, st.asOf, domain.DefaultPriority)
	if err != nil {
		st.markMissing("freight")
		return decimal.Zero, domain.ConfidenceMissing
	}
	conf := s.gradeComponent("freight", resolved.Meta, st)
	if resolved.Meta.Status != domain.ResolveOK || !resolved.Record.Value.Valid {
		return decimal.Zero, conf
	}

	st.sources["freight"] = sourceLabel(*resolved.Record)
	charge := resolved.Record.Value.Decimal
	if resolved.Record.ValueUnit == domain.UnitAmountPerKg {
		charge = charge.Mul(weight)
	}
	if cur := resolved.Record.Currency; cur != "" && cur != st.currency {
		converted, convConf := s.convertComponent(ctx, "freight", charge, cur, st)
		return converted, domain.WorseConfidence(conf, convConf)
	}
	return charge, conf
}

// applyDeMinimis evaluates the destination's threshold policy and returns
// which charges it suppresses.
func (s *QuoteService) applyDeMinimis(ctx context.Context, input domain.QuoteInput, cif, goodsValue decimal.Decimal, st *quoteState) (suppressDuty, suppressVAT bool) {
	policy, ok := s.cfg.DeMinimis[input.Destination]
	if !ok {
		return false, false
	}

	basisValue := cif
	if policy.Basis == domain.BasisGoodsOnly {
		basisValue = goodsValue
	}
	compareValue := basisValue
	if policy.Currency != st.currency {
		quote, err := s.fx.GetRate(ctx, st.currency, policy.Currency, st.asOf)
		if err != nil {
			// Without a rate for the policy currency the threshold cannot be
			// checked; charge normally rather than waive on a guess.
			s.LogWarn(ctx, "De-minimis check skipped, FX rate unavailable",
				slog.String("destination", input.Destination), slog.String("policy_currency", policy.Currency))
			return false, false
		}
		compareValue = basisValue.Mul(quote.Rate)
	}

	if compareValue.GreaterThanOrEqual(policy.Threshold) {
		return false, false
	}

	switch policy.Suppresses {
	case domain.SuppressDuty:
		st.policy = append(st.policy, "Duty not charged at import: shipment value under the de-minimis threshold.")
		return true, false
	case domain.SuppressVAT:
		st.policy = append(st.policy, "VAT not charged at import: shipment value under the de-minimis threshold.")
		return false, true
	case domain.SuppressDutyAndVAT:
		st.policy = append(st.policy, "Duty & VAT not charged at import: shipment value under the de-minimis threshold.")
		return true, true
	default:
		return false, false
	}
}

func (s *QuoteService) resolveDuty(ctx context.Context, input domain.QuoteInput, cif decimal.Decimal, suppressed bool, st *quoteState) (decimal.Decimal, domain.Confidence) {
	if suppressed {
		// A waived charge is a confirmed zero, not an unknown.
		return decimal.Zero, domain.ConfidenceAuthoritative
	}

	scope := domain.ScopeKeys{Destination: input.Destination, Origin: input.Origin, ProductCode: input.ProductCode}
	resolved, err := s.resolver.Resolve(ctx, scope, domain.RateKindDuty, st.asOf, domain.DefaultPriority)
	if err != nil {
		st.markMissing("duty")
		return decimal.Zero, domain.ConfidenceMissing
	}
	conf := s.gradeComponent("duty", resolved.Meta, st)
	if resolved.Meta.Status != domain.ResolveOK {
		return decimal.Zero, conf
	}

	record := *resolved.Record
	if !record.Value.Valid && record.ScheduleRef != "" {
		named, ok := s.resolveNamedSchedule(ctx, input, record, st)
		if !ok {
			st.markMissing("duty")
			return decimal.Zero, domain.ConfidenceMissing
		}
		record = named
	}
	st.sources["duty"] = sourceLabel(record)

	components, err := s.store.FindComponents(ctx, record.RateID)
	if err != nil {
		s.LogError(ctx, err, "Failed to load duty components", slog.String("rate_id", record.RateID))
		st.markMissing("duty")
		return decimal.Zero, domain.ConfidenceMissing
	}

	charge, err := ComposeDuty(record, components, ComposeInput{
		CustomsValue:   cif,
		Quantity:       input.Quantity,
		ChargeCurrency: st.currency,
		AsOf:           st.asOf,
		Convert: func(amount decimal.Decimal, fromCurrency string) (decimal.Decimal, error) {
			quote, err := s.fx.GetRate(ctx, fromCurrency, st.currency, st.asOf)
			if err != nil {
				return decimal.Zero, err
			}
			return amount.Mul(quote.Rate), nil
		},
	})
	if err != nil {
		s.LogError(ctx, err, "Duty composition failed", slog.String("rate_id", record.RateID))
		st.markMissing("duty")
		return decimal.Zero, domain.ConfidenceMissing
	}
	return charge, conf
}

// resolveNamedSchedule follows an override's schedule reference to the
// country-level record carrying the actual value.
func (s *QuoteService) resolveNamedSchedule(ctx context.Context, input domain.QuoteInput, record domain.RateRecord, st *quoteState) (domain.RateRecord, bool) {
	scope := domain.ScopeKeys{Destination: input.Destination}
	resolved, err := s.resolver.Resolve(ctx, scope, record.Kind, st.asOf,
		[]domain.PriorityTier{domain.TierOfficial, domain.TierCountryDefault})
	if err != nil || resolved.Meta.Status != domain.ResolveOK || !resolved.Record.Value.Valid {
		s.LogWarn(ctx, "Named schedule reference did not resolve",
			slog.String("schedule_ref", record.ScheduleRef), slog.String("destination", input.Destination))
		return domain.RateRecord{}, false
	}
	named := *resolved.Record
	// The override decides applicability; the named record supplies the value.
	named.Scope = record.Scope
	return named, true
}

func (s *QuoteService) resolveVAT(ctx context.Context, input domain.QuoteInput, cif, duty, itemValueDest decimal.Decimal, suppressed bool, st *quoteState) (vat decimal.Decimal, checkoutVAT *domain.ComponentCharge, conf domain.Confidence) {
	if suppressed {
		return decimal.Zero, nil, domain.ConfidenceAuthoritative
	}

	scope := domain.ScopeKeys{Destination: input.Destination, Origin: input.Origin, ProductCode: input.ProductCode}
	resolved, err := s.resolver.Resolve(ctx, scope, domain.RateKindVAT, st.asOf, domain.DefaultPriority)
	if err != nil {
		st.markMissing("vat")
		return decimal.Zero, nil, domain.ConfidenceMissing
	}
	conf = s.gradeComponent("vat", resolved.Meta, st)
	if resolved.Meta.Status != domain.ResolveOK || !resolved.Record.Value.Valid {
		return decimal.Zero, nil, conf
	}
	st.sources["vat"] = sourceLabel(*resolved.Record)
	ratePct := resolved.Record.Value.Decimal

	if s.checkoutEligible(ctx, input, st) {
		amount := ratePct.Div(hundred).Mul(cif)
		st.policy = append(st.policy, "VAT collected by the merchant at checkout; no import VAT due at the border.")
		return decimal.Zero, &domain.ComponentCharge{Amount: amount, Confidence: conf}, conf
	}

	base := cif
	if s.vatBasisFor(input.Destination) == domain.VATOnCIFDuty {
		base = cif.Add(duty)
		st.policy = append(st.policy, "Import VAT charged on CIF plus duty.")
	} else {
		st.policy = append(st.policy, "Import VAT charged on CIF.")
	}
	return ratePct.Div(hundred).Mul(base), nil, conf
}

// checkoutEligible decides the checkout-collection routing: merchant opted in,
// destination participates, and the item value in the reference currency is
// under the scheme threshold.
func (s *QuoteService) checkoutEligible(ctx context.Context, input domain.QuoteInput, st *quoteState) bool {
	if !input.MerchantCheckoutOptIn || !s.cfg.CheckoutDestinations[input.Destination] {
		return false
	}
	if s.cfg.CheckoutVATThreshold.LessThanOrEqual(decimal.Zero) {
		return false
	}
	refValue := input.ItemValue
	if input.ItemCurrency != "EUR" {
		quote, err := s.fx.GetRate(ctx, input.ItemCurrency, "EUR", st.asOf)
		if err != nil {
			return false
		}
		refValue = input.ItemValue.Mul(quote.Rate)
	}
	return refValue.LessThan(s.cfg.CheckoutVATThreshold)
}

func (s *QuoteService) vatBasisFor(destination string) domain.VATBasis {
	if basis, ok := s.cfg.VATBasis[destination]; ok {
		return basis
	}
	return domain.VATOnCIFDuty
}

// resolveSurcharges sums all surcharge records at the winning tier:
// fixed amounts plus percentage-of-CIF.
func (s *QuoteService) resolveSurcharges(ctx context.Context, input domain.QuoteInput, cif decimal.Decimal, st *quoteState) (decimal.Decimal, domain.Confidence) {
	scope := domain.ScopeKeys{Destination: input.Destination, Origin: input.Origin}
	records, meta, err := s.resolver.ResolveAll(ctx, scope, domain.RateKindSurcharge, st.asOf, domain.DefaultPriority)
	if err != nil {
		st.markMissing("fees")
		return decimal.Zero, domain.ConfidenceMissing
	}
	conf := s.gradeComponent("fees", meta, st)
	if meta.Status != domain.ResolveOK {
		return decimal.Zero, conf
	}

	total := decimal.Zero
	for _, r := range records {
		if !r.Value.Valid {
			continue
		}
		if s.cfg.StrictFreshness && s.cfg.StaleDatasets[r.Dataset] {
			st.markMissing("fees")
			conf = domain.ConfidenceMissing
			continue
		}
		switch r.ValueUnit {
		case domain.UnitPercent:
			total = total.Add(r.Value.Decimal.Div(hundred).Mul(cif))
		default:
			amount := r.Value.Decimal
			if cur := r.Currency; cur != "" && cur != st.currency {
				converted, convConf := s.convertComponent(ctx, "fees", amount, cur, st)
				amount = converted
				conf = domain.WorseConfidence(conf, convConf)
			}
			total = total.Add(amount)
		}
		st.sources["fees:"+r.RateID] = sourceLabel(r)
	}
	return total, conf
}

// gradeComponent maps a resolver status to a confidence grade and applies the
// strict-freshness downgrade for stale datasets.
func (s *QuoteService) gradeComponent(component string, meta domain.ResolveMeta, st *quoteState) domain.Confidence {
	conf := domain.ConfidenceForStatus(meta.Status)
	if s.cfg.StrictFreshness && meta.Dataset != "" && s.cfg.StaleDatasets[meta.Dataset] {
		conf = domain.ConfidenceMissing
	}
	if conf == domain.ConfidenceMissing {
		st.markMissing(component)
	}
	return conf
}

func sourceLabel(r domain.RateRecord) string {
	return fmt.Sprintf("rate:%s dataset:%s source:%s", r.RateID, r.Dataset, r.Source)
}
