package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/movie-ticket-booking/internal/domain"
	"github.com/shopspring/decimal"
)

const seatColumns = `id, show_id, seat_number, status, price::STRING, hold_id, held_at`

// AddSeats inserts seats, typically when a show is scheduled.
func (r *Repository) AddSeats(ctx context.Context, seats ...domain.Seat) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, s := range seats {
			status := s.Status
			if status == "" {
				status = domain.SeatAvailable
			}
			batch.Queue(`
				INSERT INTO seats (id, show_id, seat_number, status, price)
				VALUES ($1, $2, $3, $4, $5::DECIMAL)
			`, s.ID, s.ShowID, s.Number, string(status), s.Price.String())
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *Repository) SetPrice(ctx context.Context, seatID uuid.UUID, price decimal.Decimal) error {
	_, err := r.pool.Exec(ctx, `UPDATE seats SET price = $2::DECIMAL WHERE id = $1`, seatID, price.String())
	return err
}

func (r *Repository) Reserve(ctx context.Context, showID uuid.UUID, seatIDs []uuid.UUID, holdID uuid.UUID) error {
	return r.retryTx(ctx, func(tx pgx.Tx) error {
		current, err := lockSeats(ctx, tx, showID, seatIDs)
		if err != nil {
			return err
		}

		var taken []uuid.UUID
		for _, id := range seatIDs {
			if current[id].Status != domain.SeatAvailable {
				taken = append(taken, id)
			}
		}
		if len(taken) > 0 {
			return &domain.SeatConflictError{SeatIDs: taken}
		}

		_, err = tx.Exec(ctx, `
			UPDATE seats SET status = 'HELD', hold_id = $3, held_at = $4
			WHERE show_id = $1 AND id = ANY($2::UUID[])
		`, showID, uuidStrings(seatIDs), holdID, r.now())
		return err
	})
}

func (r *Repository) Confirm(ctx context.Context, showID uuid.UUID, seatIDs []uuid.UUID, holdID uuid.UUID) error {
	return r.retryTx(ctx, func(tx pgx.Tx) error {
		current, err := lockSeats(ctx, tx, showID, seatIDs)
		if err != nil {
			return err
		}
		for _, id := range seatIDs {
			if s := current[id]; s.Status != domain.SeatHeld || s.HoldID != holdID {
				return errors.WithStack(&domain.IntegrityError{ShowID: showID, SeatIDs: seatIDs, HoldID: holdID, Want: domain.SeatHeld})
			}
		}

		_, err = tx.Exec(ctx, `
			UPDATE seats SET status = 'BOOKED'
			WHERE show_id = $1 AND id = ANY($2::UUID[])
		`, showID, uuidStrings(seatIDs))
		return err
	})
}

// Release is a single conditional update; seats not held by holdID are
// left untouched.
func (r *Repository) Release(ctx context.Context, showID uuid.UUID, seatIDs []uuid.UUID, holdID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE seats SET status = 'AVAILABLE', hold_id = NULL, held_at = NULL
		WHERE show_id = $1 AND id = ANY($2::UUID[]) AND status = 'HELD' AND hold_id = $3
	`, showID, uuidStrings(seatIDs), holdID)
	return mapPgError(err)
}

func (r *Repository) ExpiredHolds(ctx context.Context, cutoff time.Time) ([]domain.Hold, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT hold_id, show_id, id, held_at
		FROM seats WHERE status = 'HELD' AND held_at <= $1
		ORDER BY held_at ASC, hold_id ASC
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holds []domain.Hold
	var current *domain.Hold
	for rows.Next() {
		var holdID, showID, seatID uuid.UUID
		var heldAt time.Time
		if err := rows.Scan(&holdID, &showID, &seatID, &heldAt); err != nil {
			return nil, err
		}
		if current == nil || current.ID != holdID {
			if current != nil {
				holds = append(holds, *current)
			}
			current = &domain.Hold{ID: holdID, ShowID: showID, HeldAt: heldAt}
		}
		current.SeatIDs = append(current.SeatIDs, seatID)
	}
	if current != nil {
		holds = append(holds, *current)
	}
	return holds, rows.Err()
}

func (r *Repository) SeatsByShow(ctx context.Context, showID uuid.UUID) ([]domain.Seat, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+seatColumns+` FROM seats WHERE show_id = $1 ORDER BY seat_number`, showID)
	if err != nil {
		return nil, err
	}
	return collectSeats(rows)
}

func (r *Repository) SeatsByNumbers(ctx context.Context, showID uuid.UUID, numbers []string) ([]domain.Seat, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+seatColumns+` FROM seats WHERE show_id = $1 AND seat_number = ANY($2)`, showID, numbers)
	if err != nil {
		return nil, err
	}
	return collectSeats(rows)
}

// lockSeats reads the seats FOR UPDATE and fails when any id is not a seat
// of the show.
func lockSeats(ctx context.Context, tx pgx.Tx, showID uuid.UUID, seatIDs []uuid.UUID) (map[uuid.UUID]domain.Seat, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+seatColumns+` FROM seats
		WHERE show_id = $1 AND id = ANY($2::UUID[])
		FOR UPDATE
	`, showID, uuidStrings(seatIDs))
	if err != nil {
		return nil, err
	}
	seats, err := collectSeats(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]domain.Seat, len(seats))
	for _, s := range seats {
		byID[s.ID] = s
	}
	var missing []string
	for _, id := range seatIDs {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return nil, domain.NewNotFound("seat", missing...)
	}
	return byID, nil
}

func collectSeats(rows pgx.Rows) ([]domain.Seat, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Seat, error) {
		var (
			s      domain.Seat
			status string
			price  string
			holdID uuid.NullUUID
			heldAt *time.Time
		)
		if err := row.Scan(&s.ID, &s.ShowID, &s.Number, &status, &price, &holdID, &heldAt); err != nil {
			return domain.Seat{}, err
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return domain.Seat{}, errors.Wrapf(err, "price of seat %s", s.ID)
		}
		s.Status = domain.SeatStatus(status)
		s.Price = p
		if holdID.Valid {
			s.HoldID = holdID.UUID
		}
		if heldAt != nil {
			s.HeldAt = *heldAt
		}
		return s, nil
	})
}
