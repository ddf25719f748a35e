package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/tradekit/landed_cost_app/internal/core/domain"
	"github.com/tradekit/landed_cost_app/internal/core/ports"
)

// RateResolverService performs effective-dated rate lookups with override
// precedence. It owns all windowing logic; the rate store only returns raw
// candidates. The resolver never treats absence of data as an error: absence
// is a status, and the status drives downstream confidence grading.
type RateResolverService struct {
	BaseService
	store ports.RateStore
	// excluded lists destinations explicitly out of scope per rate kind,
	// e.g. territories this engine does not resolve VAT for.
	excluded map[domain.RateKind]map[string]struct{}
}

// NewRateResolverService creates a new RateResolverService. excludedDestinations
// maps a rate kind to destinations that are out of scope for that kind.
func NewRateResolverService(store ports.RateStore, excludedDestinations map[domain.RateKind][]string) *RateResolverService {
	excluded := make(map[domain.RateKind]map[string]struct{}, len(excludedDestinations))
	for kind, dests := range excludedDestinations {
		set := make(map[string]struct{}, len(dests))
		for _, d := range dests {
			set[d] = struct{}{}
		}
		excluded[kind] = set
	}
	return &RateResolverService{store: store, excluded: excluded}
}

// Resolve returns the single best rate for the scope at asOf, walking the
// priority tiers in order and returning the first populated one.
func (s *RateResolverService) Resolve(ctx context.Context, scope domain.ScopeKeys, kind domain.RateKind, asOf time.Time, priority []domain.PriorityTier) (domain.ResolvedRate, error) {
	records, meta, err := s.ResolveAll(ctx, scope, kind, asOf, priority)
	if err != nil {
		return domain.ResolvedRate{Meta: meta}, err
	}
	if meta.Status != domain.ResolveOK {
		return domain.ResolvedRate{Meta: meta}, nil
	}
	best := pickLatest(records)
	meta.Dataset = best.Dataset
	return domain.ResolvedRate{Record: &best, Meta: meta}, nil
}

// ResolveAll returns every record valid at asOf at the winning priority tier.
// Surcharge resolution uses this directly, since fixed and percentage
// surcharges legitimately stack at the same tier.
func (s *RateResolverService) ResolveAll(ctx context.Context, scope domain.ScopeKeys, kind domain.RateKind, asOf time.Time, priority []domain.PriorityTier) ([]domain.RateRecord, domain.ResolveMeta, error) {
	if set, ok := s.excluded[kind]; ok {
		if _, out := set[scope.Destination]; out {
			return nil, domain.ResolveMeta{Status: domain.ResolveOutOfScope}, nil
		}
	}

	candidates, err := s.store.FindCandidates(ctx, scope, kind)
	if err != nil {
		s.LogError(ctx, err, "Rate store query failed",
			slog.String("destination", scope.Destination), slog.String("kind", string(kind)))
		return nil, domain.ResolveMeta{Status: domain.ResolveError}, nil
	}

	if len(candidates) == 0 {
		return nil, domain.ResolveMeta{Status: domain.ResolveNoDataset}, nil
	}

	var valid []domain.RateRecord
	for _, r := range candidates {
		if r.ContainsDate(asOf) {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		// The scope has coverage, just not at this instant.
		return nil, domain.ResolveMeta{Status: domain.ResolveNoMatch}, nil
	}

	if len(priority) == 0 {
		priority = domain.DefaultPriority
	}
	for _, tier := range priority {
		var matched []domain.RateRecord
		for _, r := range valid {
			if recordMatchesTier(r, tier) {
				matched = append(matched, r)
			}
		}
		if len(matched) > 0 {
			return matched, domain.ResolveMeta{Status: domain.ResolveOK, Tier: tier}, nil
		}
	}

	// Valid records exist but none fits a requested tier; for the caller this
	// is the same as having no applicable record at asOf.
	return nil, domain.ResolveMeta{Status: domain.ResolveNoMatch}, nil
}

// recordMatchesTier checks whether a record belongs to a precedence tier.
func recordMatchesTier(r domain.RateRecord, tier domain.PriorityTier) bool {
	switch tier {
	case domain.TierOverrideExplicit:
		return r.Source == domain.SourceOverride && r.Scope.ProductCode != "" && r.Value.Valid
	case domain.TierOverrideNamed:
		return r.Source == domain.SourceOverride && r.ScheduleRef != ""
	case domain.TierOfficial:
		return r.Source == domain.SourceOfficial
	case domain.TierCountryDefault:
		return r.Source == domain.SourceDefault
	default:
		return false
	}
}

// pickLatest breaks ties between records valid at the same instant. Under the
// no-overlap invariant this should not happen, but it must be defended
// against: the record with the latest EffectiveFrom wins.
func pickLatest(records []domain.RateRecord) domain.RateRecord {
	best := records[0]
	for _, r := range records[1:] {
		if r.EffectiveFrom.After(best.EffectiveFrom) {
			best = r
		}
	}
	return best
}
