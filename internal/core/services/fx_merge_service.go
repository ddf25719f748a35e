package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/tradekit/landed_cost_app/internal/apperrors"
	"github.com/tradekit/landed_cost_app/internal/core/domain"
	"github.com/tradekit/landed_cost_app/internal/core/ports"
)

// fxEntry is one merged EUR-anchored rate with its provenance.
type fxEntry struct {
	rate      decimal.Decimal
	provider  string
	sourceRef string
}

// FxMergeService builds the complete cross-currency table for one canonical
// date from a primary authoritative feed plus optional gap-filling secondaries.
type FxMergeService struct {
	BaseService
	repo        ports.FxQuoteRepository
	primary     ports.FxFeed
	secondaries []ports.FxFeed
	maxLagDays  int
}

// NewFxMergeService creates a new FxMergeService.
func NewFxMergeService(repo ports.FxQuoteRepository, primary ports.FxFeed, secondaries []ports.FxFeed, maxLagDays int) *FxMergeService {
	return &FxMergeService{
		repo:        repo,
		primary:     primary,
		secondaries: secondaries,
		maxLagDays:  maxLagDays,
	}
}

// BuildDay fetches all feeds, merges them and persists the pairwise table.
// The primary feed's reported date is the canonical asOf for the whole output;
// secondary feeds only ever fill currencies the primary is missing. Persistence
// is insert-or-ignore on (provider, base, quote, asOf), so re-running a day's
// refresh inserts zero new rows.
func (s *FxMergeService) BuildDay(ctx context.Context) (*domain.FxDay, error) {
	primarySnap, err := s.primary.Fetch(ctx)
	if err != nil {
		return nil, apperrors.NewUpstreamError("primary fx feed fetch failed", err)
	}
	if primarySnap.Base != "EUR" {
		return nil, fmt.Errorf("%w: primary feed %s anchored to %s, expected EUR", apperrors.ErrComputation, primarySnap.Provider, primarySnap.Base)
	}
	asOf := dateOnly(primarySnap.AsOf)

	secondarySnaps := s.fetchSecondaries(ctx)

	merged := make(map[string]fxEntry, len(primarySnap.Rates))
	for cur, rate := range primarySnap.Rates {
		if !validRate(rate) {
			s.LogWarn(ctx, "Rejecting invalid primary rate", slog.String("currency", cur), slog.String("rate", rate.String()))
			continue
		}
		merged[cur] = fxEntry{rate: rate, provider: primarySnap.Provider, sourceRef: primarySnap.SourceRef}
	}

	for _, snap := range secondarySnaps {
		lag := asOf.Sub(dateOnly(snap.AsOf))
		if lag < 0 {
			lag = -lag
		}
		if lag > time.Duration(s.maxLagDays)*24*time.Hour {
			s.LogWarn(ctx, "Skipping secondary feed outside lag tolerance",
				slog.String("provider", snap.Provider), slog.Time("feed_as_of", snap.AsOf), slog.Time("canonical_as_of", asOf))
			continue
		}
		for cur, rate := range snap.Rates {
			// Fill-only: a currency the primary supplied is never overwritten.
			if _, exists := merged[cur]; exists {
				continue
			}
			if !validRate(rate) {
				continue
			}
			merged[cur] = fxEntry{rate: rate, provider: snap.Provider, sourceRef: snap.SourceRef}
		}
	}

	quotes := buildPairwiseTable(merged, primarySnap.Provider, asOf)

	inserted, err := s.repo.SaveQuotes(ctx, quotes)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to persist fx quotes", err)
	}

	s.LogInfo(ctx, "FX day built",
		slog.Time("as_of", asOf), slog.Int("currencies", len(merged)),
		slog.Int("quotes", len(quotes)), slog.Int("inserted", inserted))

	return &domain.FxDay{AsOf: asOf, Quotes: quotes, Inserted: inserted}, nil
}

// GetRate returns the stored rate for a pair on an exact as-of date.
func (s *FxMergeService) GetRate(ctx context.Context, base, quote string, asOf time.Time) (*domain.FxQuote, error) {
	if base == quote {
		return &domain.FxQuote{Base: base, Quote: quote, AsOf: dateOnly(asOf), Rate: decimal.NewFromInt(1)}, nil
	}
	return s.repo.FindQuote(ctx, base, quote, dateOnly(asOf))
}

// fetchSecondaries fetches all secondary feeds concurrently. A failing
// secondary is logged and skipped; it can only ever fill gaps anyway.
func (s *FxMergeService) fetchSecondaries(ctx context.Context) []*domain.FxFeedSnapshot {
	var (
		mu    sync.Mutex
		snaps []*domain.FxFeedSnapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, feed := range s.secondaries {
		g.Go(func() error {
			snap, err := feed.Fetch(gctx)
			if err != nil {
				s.LogWarn(ctx, "Secondary fx feed fetch failed", slog.String("provider", feed.Name()), slog.String("error", err.Error()))
				return nil
			}
			if snap.Base != "EUR" {
				s.LogWarn(ctx, "Secondary fx feed not EUR-anchored, skipping", slog.String("provider", feed.Name()))
				return nil
			}
			mu.Lock()
			snaps = append(snaps, snap)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return snaps
}

// buildPairwiseTable expands the merged EUR-anchored map into the full table:
// EUR<->X for every X with X's provenance, EUR<->USD pinned to the primary
// provider (USD is the cross-rate anchor), and USD<->X derived algebraically
// via EUR, inheriting X's provenance.
func buildPairwiseTable(merged map[string]fxEntry, primaryProvider string, asOf time.Time) []domain.FxQuote {
	currencies := make([]string, 0, len(merged))
	for cur := range merged {
		currencies = append(currencies, cur)
	}
	sort.Strings(currencies)

	one := decimal.NewFromInt(1)
	seen := make(map[string]struct{})
	var quotes []domain.FxQuote

	add := func(provider, base, quote string, rate decimal.Decimal, sourceRef string) {
		if base == quote || !validRate(rate) {
			return
		}
		key := provider + "|" + base + "|" + quote
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		quotes = append(quotes, domain.FxQuote{
			Provider:  provider,
			Base:      base,
			Quote:     quote,
			AsOf:      asOf,
			Rate:      rate,
			SourceRef: sourceRef,
		})
	}

	usd, hasUSD := merged["USD"]
	for _, cur := range currencies {
		entry := merged[cur]
		provider := entry.provider
		if cur == "USD" {
			// The USD anchor leg always carries the primary's provenance.
			provider = primaryProvider
		}
		add(provider, "EUR", cur, entry.rate, entry.sourceRef)
		add(provider, cur, "EUR", one.Div(entry.rate), entry.sourceRef)
	}

	if hasUSD {
		for _, cur := range currencies {
			if cur == "USD" {
				continue
			}
			entry := merged[cur]
			add(entry.provider, "USD", cur, entry.rate.Div(usd.rate), entry.sourceRef)
			add(entry.provider, cur, "USD", usd.rate.Div(entry.rate), entry.sourceRef)
		}
	}

	return quotes
}

func validRate(rate decimal.Decimal) bool {
	return rate.IsPositive()
}

// dateOnly truncates a timestamp to its UTC calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
