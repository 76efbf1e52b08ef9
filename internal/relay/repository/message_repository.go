package repository

import (
	"context"
	"time"

	"room_relay_service/internal/relay/domain"
)

// MessageStore definition durable room message log. Size bounds are the
// caller's job; the store only assigns ids and timestamps and applies the
// retention filter on reads.
type MessageStore interface {
	// Append durably persist a message and assign id + created_at.
	Append(ctx context.Context, roomCode string, kind domain.Kind, content string) (*domain.Message, error)
	// ListActive return up to limit non-expired messages, newest first,
	// id as tiebreak. The time filter is applied at read time so expired
	// rows stay invisible even before a sweep has run.
	ListActive(ctx context.Context, roomCode string, limit int) ([]domain.Message, error)
	// DeleteExpired remove messages older than cutoff. Best effort and
	// idempotent; a failed pass is caught up on the next access.
	DeleteExpired(ctx context.Context, roomCode string, cutoff time.Time) error
	// DeleteAll remove every message of the room. Used by destroy.
	DeleteAll(ctx context.Context, roomCode string) error
}
