package crdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	OutboxNew       = "NEW"
	OutboxPublished = "PUBLISHED"
	OutboxFailed    = "FAILED"

	maxOutboxAttempts = 10
)

type OutboxRecord struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Status        string
	Attempts      int
	DedupeKey     string
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, rec OutboxRecord) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload_json, status, dedupe_key, created_at)
		VALUES ($1, $2, $3, $4, $5, 'NEW', $6, $7)
	`, rec.ID, rec.AggregateType, rec.AggregateID, rec.EventType, rec.Payload, rec.DedupeKey, r.now())
	return err
}

// PendingOutbox returns up to limit NEW records, oldest first.
func (r *Repository) PendingOutbox(ctx context.Context, limit int) ([]OutboxRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload_json, created_at, published_at, status, attempts, dedupe_key
		FROM outbox WHERE status = 'NEW' ORDER BY created_at ASC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (OutboxRecord, error) {
		var rec OutboxRecord
		err := row.Scan(&rec.ID, &rec.AggregateType, &rec.AggregateID, &rec.EventType, &rec.Payload,
			&rec.CreatedAt, &rec.PublishedAt, &rec.Status, &rec.Attempts, &rec.DedupeKey)
		return rec, err
	})
}

func (r *Repository) MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE outbox SET status = 'PUBLISHED', published_at = $2 WHERE id = $1 AND status = 'NEW'
	`, id, publishedAt)
	return err
}

// MarkAttemptFailed counts a failed publish and parks the record as FAILED
// once it has used up its attempts.
func (r *Repository) MarkAttemptFailed(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE outbox
		SET attempts = attempts + 1,
		    status = CASE WHEN attempts + 1 >= $2 THEN 'FAILED' ELSE status END
		WHERE id = $1 AND status = 'NEW'
	`, id, maxOutboxAttempts)
	return err
}
