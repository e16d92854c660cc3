package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/scrapyard-ledger/internal/domain/ledger"
)

// Status defines message publishing states
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusProcessed       Status = "PROCESSED"
	StatusFailedToPublish Status = "FAILED_TO_PUBLISH"
)

// Message stores a committed CashEntry awaiting its append into the ledger
// store. Writing the message in the same database transaction as the status
// change is what makes the completion-to-ledger bridge atomic.
type Message struct {
	ID            int64           `json:"id"`
	EntryID       uuid.UUID       `json:"entry_id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	TransactionID *uuid.UUID      `json:"transaction_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	Status        Status          `json:"status"`
	Attempts      int             `json:"attempts"`
	CreatedAt     time.Time       `json:"created_at"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
}

// NewMessage wraps a ledger entry for reliable delivery.
func NewMessage(entry *ledger.Entry) (*Message, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}

	return &Message{
		EntryID:       entry.ID,
		TenantID:      entry.TenantID,
		TransactionID: entry.TransactionID,
		Payload:       payload,
		Status:        StatusPending,
		Attempts:      0,
		CreatedAt:     time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = StatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = StatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// GetLedgerEntry extracts the cash entry from the payload
func (m *Message) GetLedgerEntry() (*ledger.Entry, error) {
	var entry ledger.Entry
	if err := json.Unmarshal(m.Payload, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
