package outbox

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Repository manages outbox message persistence
type Repository interface {
	Create(ctx context.Context, message *Message) error
	GetPending(ctx context.Context, limit int) ([]*Message, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	IncrementAttempts(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	WithTx(tx pgx.Tx) Repository
}

// ErrMessageNotFound indicates missing outbox message
type ErrMessageNotFound struct {
	ID int64
}

func (e ErrMessageNotFound) Error() string {
	return "outbox message not found"
}

// Is implements the errors.Is interface for ErrMessageNotFound
func (e ErrMessageNotFound) Is(target error) bool {
	t, ok := target.(ErrMessageNotFound)
	if !ok {
		return false
	}
	if t.ID == 0 {
		return true
	}
	return e.ID == t.ID
}
