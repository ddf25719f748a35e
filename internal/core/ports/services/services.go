package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tradekit/landed_cost_app/internal/core/domain"
)

// RunOptions tunes replay behaviour of the idempotency controller.
type RunOptions struct {
	// MaxAge, when positive, bounds how old a completed record may be before a
	// replay triggers OnStaleReplay.
	MaxAge time.Duration
	// OnStaleReplay recomputes the result for a stale completed record; the
	// returned response overwrites the cache.
	OnStaleReplay func(ctx context.Context, cached json.RawMessage) (json.RawMessage, error)
}

// RunResult is the outcome of an idempotent run.
type RunResult struct {
	Response json.RawMessage
	// Replayed is true when the response was served from the cached record
	// rather than a fresh compute.
	Replayed bool
}

// IdempotencySvcFacade wraps a compute operation with at-most-once-per-key semantics.
type IdempotencySvcFacade interface {
	Run(ctx context.Context, scope, key string, payload any, compute func(ctx context.Context) (json.RawMessage, error), opts *RunOptions) (RunResult, error)
}

// RateResolverSvcFacade is the temporal lookup-with-confidence over the rate store.
type RateResolverSvcFacade interface {
	Resolve(ctx context.Context, scope domain.ScopeKeys, kind domain.RateKind, asOf time.Time, priority []domain.PriorityTier) (domain.ResolvedRate, error)
	// ResolveAll returns every record valid at asOf at the winning priority
	// tier; used where multiple records legitimately stack (surcharges).
	ResolveAll(ctx context.Context, scope domain.ScopeKeys, kind domain.RateKind, asOf time.Time, priority []domain.PriorityTier) ([]domain.RateRecord, domain.ResolveMeta, error)
}

// FxSvcFacade builds and serves the daily reference-rate table.
type FxSvcFacade interface {
	BuildDay(ctx context.Context) (*domain.FxDay, error)
	GetRate(ctx context.Context, base, quote string, asOf time.Time) (*domain.FxQuote, error)
}

// QuoteSvcFacade is the landed-cost orchestrator.
type QuoteSvcFacade interface {
	CalculateQuote(ctx context.Context, input domain.QuoteInput) (*domain.QuoteResult, error)
}

// StatFeedJob identifies one statistical feed ingestion run.
type StatFeedJob struct {
	Name     string
	URL      string
	Language string
	Dataset  string
	Kind     domain.RateKind
	Source   domain.RateSource
}

// IngestionReport summarizes one ingestion run.
type IngestionReport struct {
	Mapping    domain.DimensionMapping
	Normalized int
	Inserted   int
	Dropped    int
	Skipped    int
}

// IngestionSvcFacade runs dataset ingestion jobs.
type IngestionSvcFacade interface {
	RunStatFeedIngestion(ctx context.Context, job StatFeedJob) (*IngestionReport, error)
}

// ServiceContainer carries all service facades for handler registration.
type ServiceContainer struct {
	Idempotency IdempotencySvcFacade
	Resolver    RateResolverSvcFacade
	Fx          FxSvcFacade
	Quote       QuoteSvcFacade
	Ingestion   IngestionSvcFacade
}
