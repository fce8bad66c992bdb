package domain

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingFailed    BookingStatus = "FAILED"
)

func (s BookingStatus) Terminal() bool {
	return s == BookingConfirmed || s == BookingFailed
}

type Booking struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ShowID      uuid.UUID
	SeatIDs     []uuid.UUID
	SeatNumbers []string
	TotalAmount decimal.Decimal
	Status      BookingStatus
	CreatedAt   time.Time
}

// NewBooking builds a PENDING booking over seats in request order. The total
// is the sum of the prices carried by seats, so callers pass the seats as they
// were quoted, not as re-read after the hold.
func NewBooking(userID, showID uuid.UUID, seats []Seat, now time.Time) Booking {
	ids := make([]uuid.UUID, len(seats))
	numbers := make([]string, len(seats))
	for i, s := range seats {
		ids[i] = s.ID
		numbers[i] = s.Number
	}
	return Booking{
		ID:          uuid.New(),
		UserID:      userID,
		ShowID:      showID,
		SeatIDs:     ids,
		SeatNumbers: numbers,
		TotalAmount: TotalPrice(seats),
		Status:      BookingPending,
		CreatedAt:   now,
	}
}

func TotalPrice(seats []Seat) decimal.Decimal {
	total := decimal.Zero
	for _, s := range seats {
		total = total.Add(s.Price)
	}
	return total
}

var errBookingTerminal = errors.New("booking already in a terminal state")

func (b *Booking) Confirm() error {
	if b.Status.Terminal() {
		return errors.Wrapf(errBookingTerminal, "confirm booking %s (%s)", b.ID, b.Status)
	}
	b.Status = BookingConfirmed
	return nil
}

func (b *Booking) Fail() error {
	if b.Status.Terminal() {
		return errors.Wrapf(errBookingTerminal, "fail booking %s (%s)", b.ID, b.Status)
	}
	b.Status = BookingFailed
	return nil
}

// AttemptState tracks a single CreateBooking run.
type AttemptState string

const (
	AttemptInitiated             AttemptState = "INITIATED"
	AttemptSeatsResolved         AttemptState = "SEATS_RESOLVED"
	AttemptSeatsHeld             AttemptState = "SEATS_HELD"
	AttemptPaymentPending        AttemptState = "PAYMENT_PENDING"
	AttemptConfirmed             AttemptState = "CONFIRMED"
	AttemptPaymentFailedReleased AttemptState = "PAYMENT_FAILED_RELEASED"
)

var attemptTransitions = map[AttemptState][]AttemptState{
	AttemptInitiated:      {AttemptSeatsResolved},
	AttemptSeatsResolved:  {AttemptSeatsHeld},
	AttemptSeatsHeld:      {AttemptPaymentPending},
	AttemptPaymentPending: {AttemptConfirmed, AttemptPaymentFailedReleased},
}

func (s AttemptState) CanAdvance(next AttemptState) bool {
	for _, allowed := range attemptTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
