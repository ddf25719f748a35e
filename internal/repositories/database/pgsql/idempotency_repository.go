package pgsql

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradekit/landed_cost_app/internal/apperrors"
	"github.com/tradekit/landed_cost_app/internal/core/domain"
	"github.com/tradekit/landed_cost_app/internal/models"
	"github.com/tradekit/landed_cost_app/internal/utils/mapping"
)

// PgxIdempotencyRepository implements ports.IdempotencyRepository using pgxpool.
// The unique (scope, idempotency_key) constraint is the race arbiter: the
// insert-or-nothing below is what guarantees at-most-one winner without any
// separate lock service.
type PgxIdempotencyRepository struct {
	BaseRepository
}

// NewPgxIdempotencyRepository creates a new PgxIdempotencyRepository.
func NewPgxIdempotencyRepository(db *pgxpool.Pool) *PgxIdempotencyRepository {
	return &PgxIdempotencyRepository{
		BaseRepository: BaseRepository{Pool: db},
	}
}

// InsertPending atomically inserts a PENDING record. When the key already
// exists the existing record is returned instead.
func (r *PgxIdempotencyRepository) InsertPending(ctx context.Context, scope, key, requestHash string) (bool, *domain.IdempotencyRecord, error) {
	tag, err := r.Pool.Exec(ctx, `
		INSERT INTO idempotency_records (scope, idempotency_key, request_hash, status, locked_at, updated_at)
		VALUES ($1, $2, $3, 'PENDING', now(), now())
		ON CONFLICT (scope, idempotency_key) DO NOTHING`,
		scope, key, requestHash,
	)
	if err != nil {
		return false, nil, apperrors.NewAppError(500, "failed to insert idempotency record", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil, nil
	}

	existing, err := r.Find(ctx, scope, key)
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

// Find returns the current record for (scope, key).
func (r *PgxIdempotencyRepository) Find(ctx context.Context, scope, key string) (*domain.IdempotencyRecord, error) {
	var m models.IdempotencyRecord
	err := r.Pool.QueryRow(ctx, `
		SELECT scope, idempotency_key, request_hash, status, response, locked_at, updated_at
		FROM idempotency_records
		WHERE scope = $1 AND idempotency_key = $2`,
		scope, key,
	).Scan(&m.Scope, &m.Key, &m.RequestHash, &m.Status, &m.Response, &m.LockedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("idempotency record not found")
		}
		return nil, apperrors.NewAppError(500, "failed to find idempotency record", err)
	}

	record := mapping.ToDomainIdempotencyRecord(m)
	return &record, nil
}

// MarkProcessing transitions PENDING -> PROCESSING.
func (r *PgxIdempotencyRepository) MarkProcessing(ctx context.Context, scope, key string) error {
	_, err := r.Pool.Exec(ctx, `
		UPDATE idempotency_records
		SET status = 'PROCESSING', locked_at = now(), updated_at = now()
		WHERE scope = $1 AND idempotency_key = $2 AND status = 'PENDING'`,
		scope, key,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to mark idempotency record processing", err)
	}
	return nil
}

// Complete transitions PROCESSING -> COMPLETED and stores the response.
func (r *PgxIdempotencyRepository) Complete(ctx context.Context, scope, key string, response json.RawMessage) error {
	_, err := r.Pool.Exec(ctx, `
		UPDATE idempotency_records
		SET status = 'COMPLETED', response = $3, updated_at = now()
		WHERE scope = $1 AND idempotency_key = $2 AND status = 'PROCESSING'`,
		scope, key, response,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to complete idempotency record", err)
	}
	return nil
}

// Fail transitions to FAILED, clearing any cached response.
func (r *PgxIdempotencyRepository) Fail(ctx context.Context, scope, key string) error {
	_, err := r.Pool.Exec(ctx, `
		UPDATE idempotency_records
		SET status = 'FAILED', response = NULL, updated_at = now()
		WHERE scope = $1 AND idempotency_key = $2 AND status IN ('PENDING', 'PROCESSING')`,
		scope, key,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to fail idempotency record", err)
	}
	return nil
}

// ClaimFailed conditionally transitions FAILED -> PROCESSING; the conditional
// update means exactly one retrier wins.
func (r *PgxIdempotencyRepository) ClaimFailed(ctx context.Context, scope, key, requestHash string) (bool, error) {
	tag, err := r.Pool.Exec(ctx, `
		UPDATE idempotency_records
		SET status = 'PROCESSING', request_hash = $3, locked_at = now(), updated_at = now()
		WHERE scope = $1 AND idempotency_key = $2 AND status = 'FAILED'`,
		scope, key, requestHash,
	)
	if err != nil {
		return false, apperrors.NewAppError(500, "failed to claim failed idempotency record", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RefreshResponse overwrites the cached response of a COMPLETED record.
func (r *PgxIdempotencyRepository) RefreshResponse(ctx context.Context, scope, key string, response json.RawMessage) error {
	_, err := r.Pool.Exec(ctx, `
		UPDATE idempotency_records
		SET response = $3, updated_at = now()
		WHERE scope = $1 AND idempotency_key = $2 AND status = 'COMPLETED'`,
		scope, key, response,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to refresh idempotency response", err)
	}
	return nil
}
