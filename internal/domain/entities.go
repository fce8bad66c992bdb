package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatHeld      SeatStatus = "HELD"
	SeatBooked    SeatStatus = "BOOKED"
)

type Seat struct {
	ID     uuid.UUID
	ShowID uuid.UUID
	Number string
	Status SeatStatus
	Price  decimal.Decimal
	// HoldID is the booking attempt owning a HELD or BOOKED seat.
	HoldID uuid.UUID
	HeldAt time.Time
}

type Show struct {
	ID        uuid.UUID
	MovieID   uuid.UUID
	TheaterID uuid.UUID
	StartsAt  time.Time
}

type Movie struct {
	ID    uuid.UUID
	Title string
}

type Theater struct {
	ID   uuid.UUID
	Name string
	City string
}

type User struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// Hold groups the seats one booking attempt keeps in HELD state.
type Hold struct {
	ID      uuid.UUID
	ShowID  uuid.UUID
	SeatIDs []uuid.UUID
	HeldAt  time.Time
}

type ShowFilter struct {
	MovieID   uuid.UUID
	TheaterID uuid.UUID
}

func (f ShowFilter) Match(s Show) bool {
	if f.MovieID != uuid.Nil && f.MovieID != s.MovieID {
		return false
	}
	if f.TheaterID != uuid.Nil && f.TheaterID != s.TheaterID {
		return false
	}
	return true
}

func SeatIDs(seats []Seat) []uuid.UUID {
	ids := make([]uuid.UUID, len(seats))
	for i, s := range seats {
		ids[i] = s.ID
	}
	return ids
}
