package models

import (
	"encoding/json"
	"time"
)

// IdempotencyRecord is the persisted guard for one compute operation.
// Unique on (scope, key); the unique constraint is the race arbiter.
type IdempotencyRecord struct {
	Scope       string          `json:"scope"`
	Key         string          `json:"key"`
	RequestHash string          `json:"requestHash"`
	Status      string          `json:"status"` // PENDING | PROCESSING | COMPLETED | FAILED
	Response    json.RawMessage `json:"response"`
	LockedAt    time.Time       `json:"lockedAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
