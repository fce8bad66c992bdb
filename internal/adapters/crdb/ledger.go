package crdb

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/movie-ticket-booking/internal/domain"
	"github.com/shopspring/decimal"
)

// Append records the booking, its seats in request order and a
// booking.confirmed outbox record in one transaction.
func (r *Repository) Append(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = r.now()
	}

	payload, err := json.Marshal(domain.NewBookingConfirmedEvent(b))
	if err != nil {
		return domain.Booking{}, errors.Wrap(err, "encode booking event")
	}

	err = r.retryTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO bookings (id, user_id, show_id, total_amount, status, created_at)
			VALUES ($1, $2, $3, $4::DECIMAL, $5, $6)
		`, b.ID, b.UserID, b.ShowID, b.TotalAmount.String(), string(b.Status), b.CreatedAt)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for i, seatID := range b.SeatIDs {
			batch.Queue(`
				INSERT INTO booking_seats (booking_id, position, seat_id, seat_number)
				VALUES ($1, $2, $3, $4)
			`, b.ID, i, seatID, b.SeatNumbers[i])
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}

		if b.Status != domain.BookingConfirmed {
			return nil
		}
		return r.insertOutbox(ctx, tx, OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "booking",
			AggregateID:   b.ID,
			EventType:     domain.EventBookingConfirmed,
			Payload:       payload,
			DedupeKey:     domain.EventBookingConfirmed + ":" + b.ID.String(),
		})
	})
	if errors.Is(err, domain.ErrConflict) {
		return domain.Booking{}, errors.Wrapf(err, "booking %s already recorded", b.ID)
	}
	if err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.user_id, b.show_id, b.total_amount::STRING, b.status, b.created_at,
		       s.seat_id, s.seat_number
		FROM bookings b
		JOIN booking_seats s ON s.booking_id = b.id
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC, b.id, s.position
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	var current *domain.Booking
	for rows.Next() {
		var (
			b          domain.Booking
			total      string
			status     string
			seatID     uuid.UUID
			seatNumber string
		)
		if err := rows.Scan(&b.ID, &b.UserID, &b.ShowID, &total, &status, &b.CreatedAt, &seatID, &seatNumber); err != nil {
			return nil, err
		}
		if current == nil || current.ID != b.ID {
			if current != nil {
				bookings = append(bookings, *current)
			}
			amount, err := decimal.NewFromString(total)
			if err != nil {
				return nil, errors.Wrapf(err, "total of booking %s", b.ID)
			}
			b.TotalAmount = amount
			b.Status = domain.BookingStatus(status)
			b.CreatedAt = b.CreatedAt.UTC()
			current = &b
		}
		current.SeatIDs = append(current.SeatIDs, seatID)
		current.SeatNumbers = append(current.SeatNumbers, seatNumber)
	}
	if current != nil {
		bookings = append(bookings, *current)
	}
	return bookings, rows.Err()
}
