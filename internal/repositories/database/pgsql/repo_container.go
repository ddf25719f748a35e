package pgsql

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryContainer bundles all pgsql repository implementations.
type RepositoryContainer struct {
	RateStore   *PgxRateStoreRepository
	FxQuote     *PgxFxQuoteRepository
	Idempotency *PgxIdempotencyRepository
	Locker      *PgxAdvisoryLocker
}

// NewRepositoryContainer creates all repositories sharing one pool.
func NewRepositoryContainer(db *pgxpool.Pool) *RepositoryContainer {
	return &RepositoryContainer{
		RateStore:   NewPgxRateStoreRepository(db),
		FxQuote:     NewPgxFxQuoteRepository(db),
		Idempotency: NewPgxIdempotencyRepository(db),
		Locker:      NewPgxAdvisoryLocker(db),
	}
}
