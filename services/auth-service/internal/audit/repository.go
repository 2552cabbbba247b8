package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/timely/libs/db"
	"github.com/md-rashed-zaman/timely/services/auth-service/internal/outbox"
)

const (
	ActionLogin  = "user.login"
	ActionLogout = "user.logout"
)

type Entry struct {
	Action   string
	ActorID  string
	Metadata map[string]any
}

// Repository appends to audit_events and mirrors each entry to the outbox when one is set.
type Repository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewRepository(pool *db.Pool, outboxRepo *outbox.Repository) *Repository {
	return &Repository{pool: pool, outbox: outboxRepo}
}

func (r *Repository) Record(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}

	return r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO audit_events (event_type, actor_id, metadata)
			VALUES ($1, NULLIF($2, '')::uuid, $3)
		`, e.Action, e.ActorID, raw); err != nil {
			return err
		}
		if r.outbox == nil {
			return nil
		}

		payload, err := json.Marshal(map[string]any{
			"action":     e.Action,
			"actor_id":   e.ActorID,
			"metadata":   e.Metadata,
			"created_at": time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, outbox.Event{
			AggregateType: "audit_event",
			AggregateID:   e.ActorID,
			EventType:     outbox.EventAudit,
			Payload:       payload,
		})
	})
}

type Event struct {
	ID        int64           `json:"id"`
	Action    string          `json:"action"`
	ActorID   string          `json:"actor_id,omitempty"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt string          `json:"created_at"`
}

func (r *Repository) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_type, COALESCE(actor_id::text, ''), metadata, created_at
		FROM audit_events
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.Action, &e.ActorID, &e.Metadata, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		events = append(events, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}
