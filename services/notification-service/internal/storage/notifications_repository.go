package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/timely/libs/db"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

type Notification struct {
	EventID   string
	Kind      string
	Recipient string
	Subject   string
	Payload   map[string]any
	Status    string
	Error     string
}

type Record struct {
	ID        int64
	EventID   string
	Kind      string
	Recipient string
	Subject   string
	Status    string
	Error     string
	CreatedAt time.Time
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO notifications (event_id, kind, recipient, subject, payload, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
	`, n.EventID, n.Kind, n.Recipient, n.Subject, payload, n.Status, n.Error)
	return err
}

// ListByRecipient returns the newest notifications addressed to recipient.
func (r *Repository) ListByRecipient(ctx context.Context, recipient string, limit int) ([]Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, kind, recipient, subject, status, COALESCE(error, ''), created_at
		FROM notifications
		WHERE recipient = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, recipient, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Kind, &rec.Recipient, &rec.Subject, &rec.Status, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
