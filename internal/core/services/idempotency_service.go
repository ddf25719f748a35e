package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tradekit/landed_cost_app/internal/apperrors"
	"github.com/tradekit/landed_cost_app/internal/core/domain"
	"github.com/tradekit/landed_cost_app/internal/core/ports"
	portssvc "github.com/tradekit/landed_cost_app/internal/core/ports/services"
)

// IdempotencyService guards compute operations with at-most-once-per-key
// semantics. The unique (scope, key) insert in the backing store is the only
// serialization point; no in-process locking is involved, so the guarantee
// holds across instances.
type IdempotencyService struct {
	BaseService
	repo ports.IdempotencyRepository
	now  func() time.Time
}

// NewIdempotencyService creates a new IdempotencyService.
func NewIdempotencyService(repo ports.IdempotencyRepository) *IdempotencyService {
	return &IdempotencyService{repo: repo, now: time.Now}
}

// Fingerprint hashes a normalized request payload. Two payloads that marshal
// to the same JSON are the same request.
func Fingerprint(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: payload not serializable: %v", apperrors.ErrInvalidRequest, err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Run executes compute at most once per (scope, key).
//
// The first caller for a key inserts a PENDING record, transitions it to
// PROCESSING and runs compute. Concurrent callers observe PROCESSING and fail
// with a conflict rather than waiting; a slow in-flight compute is observed,
// never cancelled. A completed record replays the cached response when the
// fingerprint matches and conflicts when it does not. A failed record is
// reclaimable by a later retry.
func (s *IdempotencyService) Run(ctx context.Context, scope, key string, payload any, compute func(ctx context.Context) (json.RawMessage, error), opts *portssvc.RunOptions) (portssvc.RunResult, error) {
	if key == "" {
		return portssvc.RunResult{}, apperrors.NewValidationError("idempotency key is required")
	}

	hash, err := Fingerprint(payload)
	if err != nil {
		return portssvc.RunResult{}, err
	}

	inserted, existing, err := s.repo.InsertPending(ctx, scope, key, hash)
	if err != nil {
		// A failed insert must not silently double-compute: degrade to
		// re-checking whatever state exists for the key.
		s.LogWarn(ctx, "Idempotency insert failed, re-checking existing state",
			slog.String("scope", scope), slog.String("key", key), slog.String("error", err.Error()))
		existing, ferr := s.repo.Find(ctx, scope, key)
		if ferr != nil {
			return portssvc.RunResult{}, apperrors.NewAppError(500, "idempotency store unavailable", err)
		}
		return s.handleExisting(ctx, scope, key, hash, existing, compute, opts)
	}

	if !inserted {
		return s.handleExisting(ctx, scope, key, hash, existing, compute, opts)
	}

	return s.executeAsWinner(ctx, scope, key, compute)
}

// executeAsWinner runs compute for the caller that won the insert (or claimed
// a failed record). The record never stays PROCESSING: every exit path either
// completes or fails it.
func (s *IdempotencyService) executeAsWinner(ctx context.Context, scope, key string, compute func(ctx context.Context) (json.RawMessage, error)) (result portssvc.RunResult, err error) {
	if merr := s.repo.MarkProcessing(ctx, scope, key); merr != nil {
		return portssvc.RunResult{}, apperrors.NewAppError(500, "failed to mark idempotency record processing", merr)
	}

	computed := false
	defer func() {
		if computed {
			return
		}
		// Reached on panic or early return: release the record as FAILED so
		// it is never stuck PROCESSING.
		if ferr := s.repo.Fail(ctx, scope, key); ferr != nil {
			s.LogError(ctx, ferr, "Failed to mark idempotency record failed",
				slog.String("scope", scope), slog.String("key", key))
		}
		if r := recover(); r != nil {
			err = apperrors.NewAppError(500, fmt.Sprintf("compute panicked: %v", r), apperrors.ErrComputation)
		}
	}()

	response, cerr := compute(ctx)
	if cerr != nil {
		// The deferred Fail handles the record; re-throw the compute error untouched.
		return portssvc.RunResult{}, cerr
	}
	if serr := s.repo.Complete(ctx, scope, key, response); serr != nil {
		return portssvc.RunResult{}, apperrors.NewAppError(500, "failed to store idempotency result", serr)
	}
	computed = true
	return portssvc.RunResult{Response: response, Replayed: false}, nil
}

func (s *IdempotencyService) handleExisting(ctx context.Context, scope, key, hash string, existing *domain.IdempotencyRecord, compute func(ctx context.Context) (json.RawMessage, error), opts *portssvc.RunOptions) (portssvc.RunResult, error) {
	if existing == nil {
		return portssvc.RunResult{}, apperrors.NewAppError(500, "idempotency record missing after conflict", nil)
	}

	switch existing.Status {
	case domain.IdempotencyPending, domain.IdempotencyProcessing:
		return portssvc.RunResult{}, apperrors.NewConflictError("Processing")

	case domain.IdempotencyFailed:
		claimed, err := s.repo.ClaimFailed(ctx, scope, key, hash)
		if err != nil {
			return portssvc.RunResult{}, apperrors.NewAppError(500, "failed to claim failed idempotency record", err)
		}
		if !claimed {
			return portssvc.RunResult{}, apperrors.NewConflictError("Processing")
		}
		return s.executeAsWinner(ctx, scope, key, compute)

	case domain.IdempotencyCompleted:
		if existing.RequestHash != hash {
			return portssvc.RunResult{}, apperrors.NewConflictError("payload mismatch")
		}
		if opts != nil && opts.MaxAge > 0 && opts.OnStaleReplay != nil &&
			s.now().Sub(existing.UpdatedAt) > opts.MaxAge {
			fresh, err := opts.OnStaleReplay(ctx, existing.Response)
			if err != nil {
				return portssvc.RunResult{}, err
			}
			if rerr := s.repo.RefreshResponse(ctx, scope, key, fresh); rerr != nil {
				return portssvc.RunResult{}, apperrors.NewAppError(500, "failed to refresh idempotency result", rerr)
			}
			return portssvc.RunResult{Response: fresh, Replayed: true}, nil
		}
		return portssvc.RunResult{Response: existing.Response, Replayed: true}, nil

	default:
		return portssvc.RunResult{}, apperrors.NewAppError(500, "unknown idempotency status "+string(existing.Status), nil)
	}
}
