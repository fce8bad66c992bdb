package booking

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/movie-ticket-booking/internal/domain"
)

// Checker resolves requested seat numbers against a show's seats.
type Checker struct {
	seats domain.SeatStore
}

func NewChecker(seats domain.SeatStore) *Checker {
	return &Checker{seats: seats}
}

// ResolveSeats returns the seats in request order, whatever their status.
// Duplicate and unknown numbers are reported together in one NotFoundError.
func (c *Checker) ResolveSeats(ctx context.Context, showID uuid.UUID, numbers []string) ([]domain.Seat, error) {
	if len(numbers) == 0 {
		return nil, errors.Wrap(domain.ErrInvalidInput, "no seat numbers requested")
	}

	found, err := c.seats.SeatsByNumbers(ctx, showID, numbers)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve seats of show %s", showID)
	}
	byNumber := make(map[string]domain.Seat, len(found))
	for _, s := range found {
		byNumber[s.Number] = s
	}

	out := make([]domain.Seat, 0, len(numbers))
	seen := make(map[string]struct{}, len(numbers))
	var unresolved []string
	for _, n := range numbers {
		if _, dup := seen[n]; dup {
			unresolved = append(unresolved, n)
			continue
		}
		seen[n] = struct{}{}
		seat, ok := byNumber[n]
		if !ok {
			unresolved = append(unresolved, n)
			continue
		}
		out = append(out, seat)
	}
	if len(unresolved) > 0 {
		return nil, domain.NewNotFound("seat", unresolved...)
	}
	return out, nil
}
