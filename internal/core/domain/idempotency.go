package domain

import (
	"encoding/json"
	"time"
)

// IdempotencyStatus is the lifecycle state of an idempotency record.
type IdempotencyStatus string

const (
	IdempotencyPending    IdempotencyStatus = "PENDING"
	IdempotencyProcessing IdempotencyStatus = "PROCESSING"
	IdempotencyCompleted  IdempotencyStatus = "COMPLETED"
	IdempotencyFailed     IdempotencyStatus = "FAILED"
)

// IdempotencyRecord guards one compute operation keyed by (scope, key).
// Created pending on first sight of a key under a unique-insert race guard;
// mutated to completed/failed by the single winner; read-only afterward until
// a staleness-triggered refresh overwrites the cached response.
type IdempotencyRecord struct {
	Scope       string            `json:"scope"`
	Key         string            `json:"key"`
	RequestHash string            `json:"requestHash"`
	Status      IdempotencyStatus `json:"status"`
	Response    json.RawMessage   `json:"response,omitempty"`
	LockedAt    time.Time         `json:"lockedAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}
