package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/movie-ticket-booking/internal/adapters/memory"
	"github.com/robertarktes/movie-ticket-booking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSeats(t *testing.T, n int) (*memory.SeatStore, uuid.UUID, []uuid.UUID) {
	t.Helper()
	store := memory.NewSeatStore()
	showID := uuid.New()
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
		store.Add(domain.Seat{ID: ids[i], ShowID: showID, Number: string(rune('A'+i)) + "1"})
	}
	return store, showID, ids
}

func TestSeatStore_ReserveAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store, showID, ids := seedSeats(t, 3)

	require.NoError(t, store.Reserve(ctx, showID, ids[:1], uuid.New()))

	err := store.Reserve(ctx, showID, ids, uuid.New())
	var conflict *domain.SeatConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, []uuid.UUID{ids[0]}, conflict.SeatIDs)

	for _, id := range ids[1:] {
		seat, _ := store.Seat(id)
		assert.Equal(t, domain.SeatAvailable, seat.Status)
	}
}

func TestSeatStore_ConfirmRequiresOwnHold(t *testing.T) {
	ctx := context.Background()
	store, showID, ids := seedSeats(t, 2)
	hold := uuid.New()
	require.NoError(t, store.Reserve(ctx, showID, ids, hold))

	err := store.Confirm(ctx, showID, ids, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrIntegrity))

	require.NoError(t, store.Confirm(ctx, showID, ids, hold))
	seat, _ := store.Seat(ids[1])
	assert.Equal(t, domain.SeatBooked, seat.Status)

	err = store.Confirm(ctx, showID, ids, hold)
	assert.True(t, errors.Is(err, domain.ErrIntegrity), "BOOKED seats cannot be confirmed twice")
}

func TestSeatStore_ReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, showID, ids := seedSeats(t, 2)
	hold := uuid.New()

	require.NoError(t, store.Release(ctx, showID, ids, hold))

	require.NoError(t, store.Reserve(ctx, showID, ids, hold))
	require.NoError(t, store.Release(ctx, showID, ids, uuid.New()))
	seat, _ := store.Seat(ids[0])
	assert.Equal(t, domain.SeatHeld, seat.Status, "release by another hold is a no-op")

	require.NoError(t, store.Release(ctx, showID, ids, hold))
	require.NoError(t, store.Release(ctx, showID, ids, hold))
	seat, _ = store.Seat(ids[0])
	assert.Equal(t, domain.SeatAvailable, seat.Status)
	assert.Equal(t, uuid.Nil, seat.HoldID)
}

func TestSeatStore_ExpiredHolds(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	store, showID, ids := seedSeats(t, 3)
	store.WithClock(func() time.Time { return now })

	stale, fresh := uuid.New(), uuid.New()
	require.NoError(t, store.Reserve(ctx, showID, ids[:2], stale))
	now = now.Add(10 * time.Minute)
	require.NoError(t, store.Reserve(ctx, showID, ids[2:], fresh))

	holds, err := store.ExpiredHolds(ctx, now.Add(-5*time.Minute))
	require.NoError(t, err)
	require.Len(t, holds, 1)
	assert.Equal(t, stale, holds[0].ID)
	assert.ElementsMatch(t, ids[:2], holds[0].SeatIDs)
}

func TestSeatStore_UnknownSeat(t *testing.T) {
	store, showID, _ := seedSeats(t, 1)
	err := store.Reserve(context.Background(), showID, []uuid.UUID{uuid.New()}, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSeatStore_ConcurrentReserve(t *testing.T) {
	ctx := context.Background()
	store, showID, ids := seedSeats(t, 2)

	const workers = 32
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Alternate between the full set and an overlapping single seat.
			set := ids
			if i%2 == 1 {
				set = ids[1:]
			}
			if err := store.Reserve(ctx, showID, set, uuid.New()); err == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, won)
}

func TestLedger_AppendAndList(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()
	user := uuid.New()
	base := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	older, err := ledger.Append(ctx, domain.Booking{ID: uuid.New(), UserID: user, CreatedAt: base})
	require.NoError(t, err)
	newer, err := ledger.Append(ctx, domain.Booking{UserID: user, CreatedAt: base.Add(time.Hour)})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, newer.ID)
	_, err = ledger.Append(ctx, domain.Booking{UserID: uuid.New()})
	require.NoError(t, err)

	_, err = ledger.Append(ctx, older)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	list, err := ledger.ListByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
}
