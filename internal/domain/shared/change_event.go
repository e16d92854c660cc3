package shared

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntityKind identifies the record type carried by a change event
type EntityKind string

const (
	EntityTransaction EntityKind = "transaction"
	EntityCashEntry   EntityKind = "cash_entry"
)

// ChangeEvent is published on every store mutation, scoped to the owning
// tenant. Subscribing sessions merge it into their local cache; Version is
// a per-record monotonic counter used for last-writer-wins resolution.
type ChangeEvent struct {
	TenantID   uuid.UUID       `json:"tenant_id"`
	Entity     EntityKind      `json:"entity"`
	EntityID   uuid.UUID       `json:"entity_id"`
	Version    int64           `json:"version"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
