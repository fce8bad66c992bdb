package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/movie-ticket-booking/internal/domain"
)

type Ledger struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]domain.Booking
	order    []uuid.UUID

	// FailNext makes the next Append return this error once.
	FailNext error
}

func NewLedger() *Ledger {
	return &Ledger{bookings: make(map[uuid.UUID]domain.Booking)}
}

func (l *Ledger) Append(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.FailNext; err != nil {
		l.FailNext = nil
		return domain.Booking{}, err
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if _, ok := l.bookings[b.ID]; ok {
		return domain.Booking{}, errors.Wrapf(domain.ErrConflict, "booking %s already recorded", b.ID)
	}
	b.SeatIDs = append([]uuid.UUID(nil), b.SeatIDs...)
	b.SeatNumbers = append([]string(nil), b.SeatNumbers...)
	l.bookings[b.ID] = b
	l.order = append(l.order, b.ID)
	return b, nil
}

func (l *Ledger) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.Booking
	for _, id := range l.order {
		if b := l.bookings[id]; b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.bookings)
}
