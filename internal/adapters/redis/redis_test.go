package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/robertarktes/movie-ticket-booking/internal/adapters/memory"
	redisadapter "github.com/robertarktes/movie-ticket-booking/internal/adapters/redis"
	"github.com/robertarktes/movie-ticket-booking/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *goredis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("redis container skipped in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSeatStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	client := startRedis(t)
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	store := redisadapter.NewSeatStore(client).WithClock(func() time.Time { return now })

	showID := uuid.New()
	seats := []domain.Seat{
		{ID: uuid.New(), ShowID: showID, Number: "A1", Price: decimal.NewFromInt(10)},
		{ID: uuid.New(), ShowID: showID, Number: "A2", Price: decimal.NewFromInt(12)},
		{ID: uuid.New(), ShowID: showID, Number: "A3", Price: decimal.NewFromInt(8)},
	}
	require.NoError(t, store.AddSeats(ctx, seats...))
	ids := domain.SeatIDs(seats)

	resolved, err := store.SeatsByNumbers(ctx, showID, []string{"A2", "Z9"})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, seats[1].ID, resolved[0].ID)
	assert.True(t, resolved[0].Price.Equal(decimal.NewFromInt(12)))

	hold := uuid.New()
	require.NoError(t, store.Reserve(ctx, showID, ids[:2], hold))

	err = store.Reserve(ctx, showID, ids, uuid.New())
	var conflict *domain.SeatConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, ids[:2], conflict.SeatIDs)

	err = store.Reserve(ctx, showID, []uuid.UUID{ids[2], uuid.New()}, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	holds, err := store.ExpiredHolds(ctx, now)
	require.NoError(t, err)
	require.Len(t, holds, 1)
	assert.Equal(t, hold, holds[0].ID)
	assert.ElementsMatch(t, ids[:2], holds[0].SeatIDs)

	err = store.Confirm(ctx, showID, ids[:2], uuid.New())
	assert.True(t, errors.Is(err, domain.ErrIntegrity))

	require.NoError(t, store.Confirm(ctx, showID, ids[:1], hold))
	require.NoError(t, store.Release(ctx, showID, ids, hold))
	require.NoError(t, store.Release(ctx, showID, ids, hold))

	holds, err = store.ExpiredHolds(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, holds)

	all, err := store.SeatsByShow(ctx, showID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, domain.SeatBooked, all[0].Status)
	assert.Equal(t, domain.SeatAvailable, all[1].Status)
	assert.Equal(t, uuid.Nil, all[1].HoldID)
	assert.Equal(t, domain.SeatAvailable, all[2].Status)
}

func TestIdempotency(t *testing.T) {
	ctx := context.Background()
	store := redisadapter.NewIdempotency(startRedis(t))

	got, err := store.Get(ctx, "missing-key-0001")
	require.NoError(t, err)
	assert.Nil(t, got)

	ok, err := store.Lock(ctx, "key-0000000000001", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Lock(ctx, "key-0000000000001", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "key-0000000000001", redisadapter.IdempResponse{Status: 201, Result: []byte(`{"id":1}`)}, time.Minute))
	require.NoError(t, store.Unlock(ctx, "key-0000000000001"))

	got, err = store.Get(ctx, "key-0000000000001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 201, got.Status)
	assert.JSONEq(t, `{"id":1}`, string(got.Result))
}

func TestCatalogCache(t *testing.T) {
	ctx := context.Background()
	client := startRedis(t)
	catalog := memory.NewCatalog()
	movie := domain.Movie{ID: uuid.New(), Title: "Metropolis"}
	catalog.AddMovie(movie)

	cache := redisadapter.NewCatalogCache(client, catalog, time.Minute)

	got, err := cache.FindMovie(ctx, movie.ID)
	require.NoError(t, err)
	assert.Equal(t, movie, *got)

	n, err := client.Exists(ctx, "catalog:movie:"+movie.ID.String()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = cache.FindMovie(ctx, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
