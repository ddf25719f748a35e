package pgsql

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradekit/landed_cost_app/internal/apperrors"
)

// PgxAdvisoryLocker implements ports.AdvisoryLocker on Postgres advisory
// locks. Session locks are bound to a connection, so each held lock pins a
// dedicated connection from the pool until released.
type PgxAdvisoryLocker struct {
	pool *pgxpool.Pool

	mu   sync.Mutex
	held map[string]*pgxpool.Conn
}

// NewPgxAdvisoryLocker creates a new PgxAdvisoryLocker.
func NewPgxAdvisoryLocker(db *pgxpool.Pool) *PgxAdvisoryLocker {
	return &PgxAdvisoryLocker{
		pool: db,
		held: make(map[string]*pgxpool.Conn),
	}
}

// lockID derives the numeric lock identity deterministically from the key.
func lockID(lockKey string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(lockKey))
	return int64(h.Sum64())
}

// Acquire tries to take the advisory lock without blocking. Returns false
// when another session (or this process) already holds it.
func (l *PgxAdvisoryLocker) Acquire(ctx context.Context, lockKey string) (bool, error) {
	l.mu.Lock()
	if _, holding := l.held[lockKey]; holding {
		l.mu.Unlock()
		return false, nil
	}
	l.mu.Unlock()

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, apperrors.NewAppError(500, "failed to acquire connection for advisory lock", err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, lockID(lockKey)).Scan(&locked); err != nil {
		conn.Release()
		return false, apperrors.NewAppError(500, "failed to take advisory lock", err)
	}
	if !locked {
		conn.Release()
		return false, nil
	}

	l.mu.Lock()
	l.held[lockKey] = conn
	l.mu.Unlock()
	return true, nil
}

// Release unlocks and returns the pinned connection to the pool.
func (l *PgxAdvisoryLocker) Release(ctx context.Context, lockKey string) error {
	l.mu.Lock()
	conn, holding := l.held[lockKey]
	delete(l.held, lockKey)
	l.mu.Unlock()

	if !holding {
		return nil
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, lockID(lockKey)); err != nil {
		return apperrors.NewAppError(500, "failed to release advisory lock", err)
	}
	return nil
}
