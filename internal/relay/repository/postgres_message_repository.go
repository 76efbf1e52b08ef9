package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"room_relay_service/internal/relay/domain"
	errprocess "room_relay_service/pkg/err"
)

// messagesSchema single table, no rooms table: a room exists exactly
// while it has rows here or live presence entries.
const messagesSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id         BIGSERIAL PRIMARY KEY,
	room_code  TEXT        NOT NULL,
	kind       TEXT        NOT NULL,
	content    TEXT        NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages (room_code, created_at DESC, id DESC);`

type postgresMessageStore struct {
	db *pgxpool.Pool
}

// NewPostgresMessageStore create a pgx backed MessageStore.
func NewPostgresMessageStore(db *pgxpool.Pool) MessageStore {
	return &postgresMessageStore{db: db}
}

// MigratePostgres create the messages table if it does not exist.
func MigratePostgres(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, messagesSchema)
	return err
}

func (r *postgresMessageStore) Append(ctx context.Context, roomCode string, kind domain.Kind, content string) (*domain.Message, error) {
	msg := &domain.Message{
		RoomCode: roomCode,
		Kind:     kind,
		Content:  content,
	}
	var id int64
	err := r.db.QueryRow(ctx,
		"INSERT INTO messages (room_code, kind, content) VALUES ($1, $2, $3) RETURNING id, created_at",
		roomCode, string(kind), content,
	).Scan(&id, &msg.CreatedAt)
	if err != nil {
		return nil, errprocess.Set(fmt.Sprintf("insert message failed: %v", err))
	}
	msg.ID = strconv.FormatInt(id, 10)
	return msg, nil
}

func (r *postgresMessageStore) ListActive(ctx context.Context, roomCode string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = domain.DefaultListLimit
	}
	cutoff := time.Now().Add(-domain.RetentionWindow)
	rows, err := r.db.Query(ctx,
		`SELECT id, room_code, kind, content, created_at FROM messages
		 WHERE room_code = $1 AND created_at > $2
		 ORDER BY created_at DESC, id DESC LIMIT $3`,
		roomCode, cutoff, limit,
	)
	if err != nil {
		return nil, errprocess.Set(fmt.Sprintf("query messages failed: %v", err))
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var (
			id   int64
			kind string
			msg  domain.Message
		)
		if err := rows.Scan(&id, &msg.RoomCode, &kind, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.ID = strconv.FormatInt(id, 10)
		msg.Kind = domain.Kind(kind)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (r *postgresMessageStore) DeleteExpired(ctx context.Context, roomCode string, cutoff time.Time) error {
	_, err := r.db.Exec(ctx,
		"DELETE FROM messages WHERE room_code = $1 AND created_at < $2",
		roomCode, cutoff,
	)
	return err
}

func (r *postgresMessageStore) DeleteAll(ctx context.Context, roomCode string) error {
	_, err := r.db.Exec(ctx, "DELETE FROM messages WHERE room_code = $1", roomCode)
	return err
}
