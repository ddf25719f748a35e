package pgsql

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradekit/landed_cost_app/internal/apperrors"
	"github.com/tradekit/landed_cost_app/internal/core/domain"
	"github.com/tradekit/landed_cost_app/internal/models"
	"github.com/tradekit/landed_cost_app/internal/utils/mapping"
)

// PgxRateStoreRepository implements ports.RateStore and ports.RateWriter using pgxpool.
// It returns raw candidates only; all windowing logic is resolver-side.
type PgxRateStoreRepository struct {
	BaseRepository
}

// NewPgxRateStoreRepository creates a new PgxRateStoreRepository.
func NewPgxRateStoreRepository(db *pgxpool.Pool) *PgxRateStoreRepository {
	return &PgxRateStoreRepository{
		BaseRepository: BaseRepository{Pool: db},
	}
}

const rateRecordColumns = `
	rate_id, destination, origin, product_code, kind, value, value_unit,
	currency, schedule_ref, source, effective_from, effective_to, dataset,
	created_at, created_by, last_updated_at, last_updated_by`

// FindCandidates returns every rate record matching the scope, across all
// sources and validity windows. Records with an empty origin or product code
// are country-level facts and match any origin/product.
func (r *PgxRateStoreRepository) FindCandidates(ctx context.Context, scope domain.ScopeKeys, kind domain.RateKind) ([]domain.RateRecord, error) {
	query := `
		SELECT ` + rateRecordColumns + `
		FROM rate_records
		WHERE destination = $1
		  AND kind = $2
		  AND (origin = '' OR origin = $3)
		  AND (product_code = '' OR product_code = $4)
		ORDER BY effective_from DESC;
	`

	rows, err := r.Pool.Query(ctx, query, scope.Destination, string(kind), scope.Origin, scope.ProductCode)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query rate candidates", err)
	}
	defer rows.Close()

	var modelRecords []models.RateRecord
	for rows.Next() {
		var m models.RateRecord
		err := rows.Scan(
			&m.RateID, &m.Destination, &m.Origin, &m.ProductCode, &m.Kind,
			&m.Value, &m.ValueUnit, &m.Currency, &m.ScheduleRef, &m.Source,
			&m.EffectiveFrom, &m.EffectiveTo, &m.Dataset,
			&m.CreatedAt, &m.CreatedBy, &m.LastUpdatedAt, &m.LastUpdatedBy,
		)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan rate record", err)
		}
		modelRecords = append(modelRecords, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating rate records", err)
	}

	return mapping.ToDomainRateRecordSlice(modelRecords), nil
}

// FindComponents returns the duty components of a parent rate record.
func (r *PgxRateStoreRepository) FindComponents(ctx context.Context, parentRateID string) ([]domain.DutyComponent, error) {
	query := `
		SELECT component_id, parent_rate_id, type, rate_pct, amount, currency,
		       unit_of_measure, qualifier, combinator_formula, effective_from, effective_to
		FROM duty_components
		WHERE parent_rate_id = $1;
	`

	rows, err := r.Pool.Query(ctx, query, parentRateID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query duty components", err)
	}
	defer rows.Close()

	var modelComponents []models.DutyComponent
	for rows.Next() {
		var m models.DutyComponent
		err := rows.Scan(
			&m.ComponentID, &m.ParentRateID, &m.Type, &m.RatePct, &m.Amount,
			&m.Currency, &m.UnitOfMeasure, &m.Qualifier, &m.CombinatorFormula,
			&m.EffectiveFrom, &m.EffectiveTo,
		)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan duty component", err)
		}
		modelComponents = append(modelComponents, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating duty components", err)
	}

	return mapping.ToDomainDutyComponentSlice(modelComponents), nil
}

// SaveCandidateRows persists normalized candidate rows from ingestion,
// skipping rows that duplicate an existing same-source window. Returns the
// number actually inserted.
func (r *PgxRateStoreRepository) SaveCandidateRows(ctx context.Context, candidates []domain.CandidateRow, creator string) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	tx, err := r.Begin(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	inserted := 0
	for _, c := range candidates {
		tag, err := tx.Exec(ctx, `
			INSERT INTO rate_records (
				rate_id, destination, origin, product_code, kind, value, value_unit,
				currency, schedule_ref, source, effective_from, effective_to, dataset,
				created_at, created_by, last_updated_at, last_updated_by
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
			ON CONFLICT (destination, origin, product_code, kind, source, effective_from) DO NOTHING`,
			uuid.NewString(), c.Scope.Destination, c.Scope.Origin, c.Scope.ProductCode,
			string(c.Kind), c.Value, string(c.ValueUnit), c.Currency, "", string(c.Source),
			c.EffectiveFrom, c.EffectiveTo, c.Dataset, now, creator, now, creator,
		)
		if err != nil {
			_ = r.Rollback(ctx, tx)
			return 0, apperrors.NewAppError(500, "failed to insert candidate rate row", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := r.Commit(ctx, tx); err != nil {
		return 0, err
	}
	return inserted, nil
}
