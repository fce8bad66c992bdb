package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SeatStore is the single owner of seat status. Implementations make each
// call atomic with respect to concurrent callers and durable before return.
type SeatStore interface {
	// Reserve moves every seat from AVAILABLE to HELD under holdID, or none
	// of them. A *SeatConflictError names every seat that was not AVAILABLE.
	Reserve(ctx context.Context, showID uuid.UUID, seatIDs []uuid.UUID, holdID uuid.UUID) error
	// Confirm moves seats HELD by holdID to BOOKED. Any other state yields
	// an *IntegrityError and no seat changes.
	Confirm(ctx context.Context, showID uuid.UUID, seatIDs []uuid.UUID, holdID uuid.UUID) error
	// Release moves seats HELD by holdID back to AVAILABLE. Seats in any
	// other state are left alone.
	Release(ctx context.Context, showID uuid.UUID, seatIDs []uuid.UUID, holdID uuid.UUID) error
	ExpiredHolds(ctx context.Context, cutoff time.Time) ([]Hold, error)
	SeatsByShow(ctx context.Context, showID uuid.UUID) ([]Seat, error)
	SeatsByNumbers(ctx context.Context, showID uuid.UUID, numbers []string) ([]Seat, error)
}

type BookingLedger interface {
	Append(ctx context.Context, booking Booking) (Booking, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Booking, error)
}

// Catalog lookups return a *NotFoundError when the entity does not exist.
type Catalog interface {
	FindUser(ctx context.Context, id uuid.UUID) (*User, error)
	FindShow(ctx context.Context, id uuid.UUID) (*Show, error)
	FindMovie(ctx context.Context, id uuid.UUID) (*Movie, error)
	FindTheater(ctx context.Context, id uuid.UUID) (*Theater, error)
	ListShows(ctx context.Context, filter ShowFilter) ([]Show, error)
}

type PaymentGateway interface {
	Charge(ctx context.Context, reference string, amount decimal.Decimal) (bool, error)
}
