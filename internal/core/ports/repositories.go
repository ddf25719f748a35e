package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tradekit/landed_cost_app/internal/core/domain"
)

// RateStore is the read side of the rate data: no windowing logic lives here,
// the temporal resolver applies it over the returned candidates.
type RateStore interface {
	// FindCandidates returns every RateRecord for the scope and kind, across
	// all sources and validity windows.
	FindCandidates(ctx context.Context, scope domain.ScopeKeys, kind domain.RateKind) ([]domain.RateRecord, error)
	// FindComponents returns the DutyComponents of a parent duty record.
	FindComponents(ctx context.Context, parentRateID string) ([]domain.DutyComponent, error)
}

// RateWriter is the ingestion side of the rate data.
type RateWriter interface {
	// SaveCandidateRows persists normalized candidate rows, skipping rows that
	// duplicate an existing same-source window. Returns the number inserted.
	SaveCandidateRows(ctx context.Context, rows []domain.CandidateRow, creator string) (int, error)
}

// FxQuoteRepository defines persistence operations for FX quotes.
type FxQuoteRepository interface {
	// SaveQuotes inserts quotes, ignoring rows whose (provider, base, quote, asOf)
	// already exists. Returns the number actually inserted so a re-run of a
	// day's refresh is observably a no-op.
	SaveQuotes(ctx context.Context, quotes []domain.FxQuote) (int, error)
	// FindQuote returns the rate for a pair on an exact as-of date.
	FindQuote(ctx context.Context, base, quote string, asOf time.Time) (*domain.FxQuote, error)
}

// IdempotencyRepository defines the unique-insert race guard backing the
// idempotency controller. All mutations are conditional on current status so
// exactly one caller can win each transition.
type IdempotencyRepository interface {
	// InsertPending atomically inserts a PENDING record for (scope, key).
	// Returns inserted=false with the existing record when the key is already present.
	InsertPending(ctx context.Context, scope, key, requestHash string) (inserted bool, existing *domain.IdempotencyRecord, err error)
	// Find returns the current record, or apperrors.ErrNotFound.
	Find(ctx context.Context, scope, key string) (*domain.IdempotencyRecord, error)
	// MarkProcessing transitions PENDING -> PROCESSING.
	MarkProcessing(ctx context.Context, scope, key string) error
	// Complete transitions PROCESSING -> COMPLETED and stores the response.
	Complete(ctx context.Context, scope, key string, response json.RawMessage) error
	// Fail transitions to FAILED, clearing any cached response.
	Fail(ctx context.Context, scope, key string) error
	// ClaimFailed conditionally transitions FAILED -> PROCESSING with a fresh
	// request hash; returns false if another caller claimed it first.
	ClaimFailed(ctx context.Context, scope, key, requestHash string) (bool, error)
	// RefreshResponse overwrites the cached response of a COMPLETED record.
	RefreshResponse(ctx context.Context, scope, key string, response json.RawMessage) error
}

// AdvisoryLocker prevents overlapping runs of the same logical job. The lock
// key is derived deterministically from the job identity.
type AdvisoryLocker interface {
	Acquire(ctx context.Context, lockKey string) (bool, error)
	Release(ctx context.Context, lockKey string) error
}

// FxFeed is one reference-rate provider: an adapter that fetches and decodes
// the provider's published table into an EUR-anchored snapshot.
type FxFeed interface {
	Name() string
	Fetch(ctx context.Context) (*domain.FxFeedSnapshot, error)
}

// DatasetFetcher returns already-decoded rows of an external tabular dataset.
// Transport errors surface as typed fetch failures, never silent empty results.
type DatasetFetcher interface {
	FetchRows(ctx context.Context, url, language string) ([]map[string]string, error)
}
