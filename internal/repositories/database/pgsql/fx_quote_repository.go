package pgsql

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradekit/landed_cost_app/internal/apperrors"
	"github.com/tradekit/landed_cost_app/internal/core/domain"
	"github.com/tradekit/landed_cost_app/internal/models"
	"github.com/tradekit/landed_cost_app/internal/utils/mapping"
)

// PgxFxQuoteRepository implements ports.FxQuoteRepository using pgxpool.
type PgxFxQuoteRepository struct {
	BaseRepository
}

// NewPgxFxQuoteRepository creates a new PgxFxQuoteRepository.
func NewPgxFxQuoteRepository(db *pgxpool.Pool) *PgxFxQuoteRepository {
	return &PgxFxQuoteRepository{
		BaseRepository: BaseRepository{Pool: db},
	}
}

// SaveQuotes inserts quotes insert-or-ignore on the (provider, base, quote,
// asOf) unique key, so re-running a day's refresh is a no-op once rates exist.
// Returns the number of rows actually inserted.
func (r *PgxFxQuoteRepository) SaveQuotes(ctx context.Context, quotes []domain.FxQuote) (int, error) {
	if len(quotes) == 0 {
		return 0, nil
	}

	tx, err := r.Begin(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	inserted := 0
	for _, q := range quotes {
		tag, err := tx.Exec(ctx, `
			INSERT INTO fx_quotes (
				quote_id, provider, base_currency, quote_currency, as_of, rate, source_ref,
				created_at, created_by, last_updated_at, last_updated_by
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (provider, base_currency, quote_currency, as_of) DO NOTHING`,
			uuid.NewString(), q.Provider, q.Base, q.Quote, q.AsOf, q.Rate, q.SourceRef,
			now, "fx_refresh", now, "fx_refresh",
		)
		if err != nil {
			_ = r.Rollback(ctx, tx)
			return 0, apperrors.NewAppError(500, "failed to insert fx quote", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := r.Commit(ctx, tx); err != nil {
		return 0, err
	}
	return inserted, nil
}

// FindQuote returns the rate for a pair on an exact as-of date.
func (r *PgxFxQuoteRepository) FindQuote(ctx context.Context, base, quote string, asOf time.Time) (*domain.FxQuote, error) {
	query := `
		SELECT quote_id, provider, base_currency, quote_currency, as_of, rate, source_ref,
		       created_at, created_by, last_updated_at, last_updated_by
		FROM fx_quotes
		WHERE base_currency = $1 AND quote_currency = $2 AND as_of = $3
		ORDER BY provider
		LIMIT 1;
	`

	var m models.FxQuote
	err := r.Pool.QueryRow(ctx, query, base, quote, asOf).Scan(
		&m.QuoteID, &m.Provider, &m.BaseCurrency, &m.QuoteCurrency, &m.AsOf,
		&m.Rate, &m.SourceRef,
		&m.CreatedAt, &m.CreatedBy, &m.LastUpdatedAt, &m.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("no fx quote for " + base + "/" + quote + " on " + asOf.Format("2006-01-02"))
		}
		return nil, apperrors.NewAppError(500, "failed to find fx quote", err)
	}

	domainQuote := mapping.ToDomainFxQuote(m)
	return &domainQuote, nil
}
