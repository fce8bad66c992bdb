package crdb

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS seats (
		id UUID PRIMARY KEY,
		show_id UUID NOT NULL,
		seat_number STRING NOT NULL,
		status STRING NOT NULL DEFAULT 'AVAILABLE' CHECK (status IN ('AVAILABLE', 'HELD', 'BOOKED')),
		price DECIMAL(10, 2) NOT NULL,
		hold_id UUID NULL,
		held_at TIMESTAMPTZ NULL,
		UNIQUE (show_id, seat_number),
		INDEX seats_held_idx (status, held_at)
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		show_id UUID NOT NULL,
		total_amount DECIMAL(12, 2) NOT NULL,
		status STRING NOT NULL CHECK (status IN ('PENDING', 'CONFIRMED', 'FAILED')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		INDEX bookings_user_idx (user_id, created_at DESC)
	)`,
	`CREATE TABLE IF NOT EXISTS booking_seats (
		booking_id UUID NOT NULL REFERENCES bookings (id),
		position INT NOT NULL,
		seat_id UUID NOT NULL,
		seat_number STRING NOT NULL,
		PRIMARY KEY (booking_id, position),
		UNIQUE (seat_id)
	)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id UUID PRIMARY KEY,
		aggregate_type STRING NOT NULL,
		aggregate_id UUID NOT NULL,
		event_type STRING NOT NULL,
		payload_json JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at TIMESTAMPTZ NULL,
		status STRING NOT NULL DEFAULT 'NEW' CHECK (status IN ('NEW', 'PUBLISHED', 'FAILED')),
		attempts INT NOT NULL DEFAULT 0,
		dedupe_key STRING NOT NULL UNIQUE,
		INDEX outbox_pending_idx (status, created_at)
	)`,
}

// Migrate creates the tables the repository needs. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "apply schema")
		}
	}
	return nil
}
