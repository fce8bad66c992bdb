package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventBookingConfirmed = "booking.confirmed"
	EventHoldExpired      = "hold.expired"
)

type BookingConfirmedEvent struct {
	BookingID   uuid.UUID   `json:"booking_id"`
	UserID      uuid.UUID   `json:"user_id"`
	ShowID      uuid.UUID   `json:"show_id"`
	SeatIDs     []uuid.UUID `json:"seat_ids"`
	SeatNumbers []string    `json:"seat_numbers"`
	TotalAmount string      `json:"total_amount"`
	CreatedAt   time.Time   `json:"created_at"`
}

func NewBookingConfirmedEvent(b Booking) BookingConfirmedEvent {
	return BookingConfirmedEvent{
		BookingID:   b.ID,
		UserID:      b.UserID,
		ShowID:      b.ShowID,
		SeatIDs:     b.SeatIDs,
		SeatNumbers: b.SeatNumbers,
		TotalAmount: b.TotalAmount.StringFixed(2),
		CreatedAt:   b.CreatedAt,
	}
}

type HoldExpiredEvent struct {
	HoldID    uuid.UUID   `json:"hold_id"`
	ShowID    uuid.UUID   `json:"show_id"`
	SeatIDs   []uuid.UUID `json:"seat_ids"`
	HeldAt    time.Time   `json:"held_at"`
	ExpiredAt time.Time   `json:"expired_at"`
}
