package expiry_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/movie-ticket-booking/internal/adapters/memory"
	"github.com/robertarktes/movie-ticket-booking/internal/domain"
	"github.com/robertarktes/movie-ticket-booking/internal/expiry"
	"github.com/robertarktes/movie-ticket-booking/internal/observability"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(ctx context.Context, key string, v interface{}) error {
	return m.Called(ctx, key, v).Error(0)
}

type flakyStore struct {
	*memory.SeatStore
	failures int
}

func (s *flakyStore) Release(ctx context.Context, showID uuid.UUID, seatIDs []uuid.UUID, holdID uuid.UUID) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("connection reset")
	}
	return s.SeatStore.Release(ctx, showID, seatIDs, holdID)
}

func TestWorker_Sweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := memory.NewSeatStore().WithClock(clock)
	showID := uuid.New()
	a1 := domain.Seat{ID: uuid.New(), ShowID: showID, Number: "A1", Price: decimal.NewFromInt(10)}
	a2 := domain.Seat{ID: uuid.New(), ShowID: showID, Number: "A2", Price: decimal.NewFromInt(10)}
	store.Add(a1, a2)

	stale := uuid.New()
	require.NoError(t, store.Reserve(ctx, showID, []uuid.UUID{a1.ID}, stale))
	now = now.Add(4 * time.Minute)
	require.NoError(t, store.Reserve(ctx, showID, []uuid.UUID{a2.ID}, uuid.New()))
	now = now.Add(2 * time.Minute)

	events := new(mockPublisher)
	events.On("PublishJSON", ctx, domain.EventHoldExpired, mock.MatchedBy(func(e domain.HoldExpiredEvent) bool {
		return e.HoldID == stale && len(e.SeatIDs) == 1
	})).Return(nil).Once()

	w := expiry.NewWorker(&flakyStore{SeatStore: store, failures: 2}, events, observability.NewDiscardLogger(), 5*time.Minute,
		expiry.WithClock(clock), expiry.WithBackoff(time.Millisecond))

	n, err := w.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	events.AssertExpectations(t)

	seat, _ := store.Seat(a1.ID)
	assert.Equal(t, domain.SeatAvailable, seat.Status)
	seat, _ = store.Seat(a2.ID)
	assert.Equal(t, domain.SeatHeld, seat.Status)
}

func TestWorker_GivesUpAfterRetries(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSeatStore()
	showID := uuid.New()
	seat := domain.Seat{ID: uuid.New(), ShowID: showID, Number: "A1"}
	store.Add(seat)
	require.NoError(t, store.Reserve(ctx, showID, []uuid.UUID{seat.ID}, uuid.New()))

	w := expiry.NewWorker(&flakyStore{SeatStore: store, failures: 3}, nil, observability.NewDiscardLogger(), 0,
		expiry.WithClock(func() time.Time { return time.Now().Add(time.Hour) }), expiry.WithBackoff(time.Millisecond))

	n, err := w.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = w.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "next sweep picks the hold up again")
}
