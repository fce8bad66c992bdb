// Package memory holds process-local adapters backing the booking and HTTP
// unit tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/movie-ticket-booking/internal/domain"
	"github.com/shopspring/decimal"
)

type SeatStore struct {
	mu    sync.Mutex
	seats map[uuid.UUID]*domain.Seat
	now   func() time.Time
}

func NewSeatStore() *SeatStore {
	return &SeatStore{seats: make(map[uuid.UUID]*domain.Seat), now: time.Now}
}

// WithClock replaces the clock stamped onto held seats.
func (s *SeatStore) WithClock(now func() time.Time) *SeatStore {
	s.now = now
	return s
}

func (s *SeatStore) Add(seats ...domain.Seat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seat := range seats {
		seat := seat
		if seat.Status == "" {
			seat.Status = domain.SeatAvailable
		}
		s.seats[seat.ID] = &seat
	}
}

func (s *SeatStore) SetPrice(seatID uuid.UUID, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seat, ok := s.seats[seatID]; ok {
		seat.Price = price
	}
}

func (s *SeatStore) Seat(seatID uuid.UUID) (domain.Seat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[seatID]
	if !ok {
		return domain.Seat{}, false
	}
	return *seat, true
}

func (s *SeatStore) lookup(showID uuid.UUID, seatIDs []uuid.UUID) ([]*domain.Seat, error) {
	out := make([]*domain.Seat, 0, len(seatIDs))
	for _, id := range seatIDs {
		seat, ok := s.seats[id]
		if !ok || seat.ShowID != showID {
			return nil, domain.NewNotFound("seat", id.String())
		}
		out = append(out, seat)
	}
	return out, nil
}

func (s *SeatStore) Reserve(ctx context.Context, showID uuid.UUID, seatIDs []uuid.UUID, holdID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	seats, err := s.lookup(showID, seatIDs)
	if err != nil {
		return err
	}

	var taken []uuid.UUID
	for _, seat := range seats {
		if seat.Status != domain.SeatAvailable {
			taken = append(taken, seat.ID)
		}
	}
	if len(taken) > 0 {
		return &domain.SeatConflictError{SeatIDs: taken}
	}

	now := s.now()
	for _, seat := range seats {
		seat.Status = domain.SeatHeld
		seat.HoldID = holdID
		seat.HeldAt = now
	}
	return nil
}

func (s *SeatStore) Confirm(ctx context.Context, showID uuid.UUID, seatIDs []uuid.UUID, holdID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	seats, err := s.lookup(showID, seatIDs)
	if err != nil {
		return err
	}
	for _, seat := range seats {
		if seat.Status != domain.SeatHeld || seat.HoldID != holdID {
			return errors.WithStack(&domain.IntegrityError{ShowID: showID, SeatIDs: seatIDs, HoldID: holdID, Want: domain.SeatHeld})
		}
	}
	for _, seat := range seats {
		seat.Status = domain.SeatBooked
	}
	return nil
}

func (s *SeatStore) Release(ctx context.Context, showID uuid.UUID, seatIDs []uuid.UUID, holdID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range seatIDs {
		seat, ok := s.seats[id]
		if ok && seat.ShowID == showID && seat.Status == domain.SeatHeld && seat.HoldID == holdID {
			seat.Status = domain.SeatAvailable
			seat.HoldID = uuid.Nil
			seat.HeldAt = time.Time{}
		}
	}
	return nil
}

func (s *SeatStore) ExpiredHolds(ctx context.Context, cutoff time.Time) ([]domain.Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	holds := make(map[uuid.UUID]*domain.Hold)
	for _, seat := range s.seats {
		if seat.Status != domain.SeatHeld || seat.HeldAt.After(cutoff) {
			continue
		}
		h, ok := holds[seat.HoldID]
		if !ok {
			h = &domain.Hold{ID: seat.HoldID, ShowID: seat.ShowID, HeldAt: seat.HeldAt}
			holds[seat.HoldID] = h
		}
		h.SeatIDs = append(h.SeatIDs, seat.ID)
	}

	out := make([]domain.Hold, 0, len(holds))
	for _, h := range holds {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HeldAt.Before(out[j].HeldAt) })
	return out, nil
}

func (s *SeatStore) SeatsByShow(ctx context.Context, showID uuid.UUID) ([]domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Seat
	for _, seat := range s.seats {
		if seat.ShowID == showID {
			out = append(out, *seat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *SeatStore) SeatsByNumbers(ctx context.Context, showID uuid.UUID, numbers []string) ([]domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		want[n] = struct{}{}
	}
	var out []domain.Seat
	for _, seat := range s.seats {
		if _, ok := want[seat.Number]; ok && seat.ShowID == showID {
			out = append(out, *seat)
		}
	}
	return out, nil
}
