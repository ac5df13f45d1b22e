package chat

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Save(ctx context.Context, msg Message) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO messages (room, sender_id, text, created_at)
		VALUES (?, ?, ?, ?)
	`, msg.Room, msg.Sender, msg.Text, msg.At.UTC())
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// History returns the most recent messages for a room in chronological
// order, capped at limit.
func (r *Repo) History(ctx context.Context, roomID string, limit int) ([]Message, error) {
	if limit <= 0 || limit > 200 {
		limit = HistoryLimit
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT room, sender_id, text, created_at
		FROM messages
		WHERE room = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		var at time.Time
		if err := rows.Scan(&m.Room, &m.Sender, &m.Text, &at); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Type = "message"
		m.At = at
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}

	// newest-first from the query, oldest-first for replay
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
