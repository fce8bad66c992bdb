package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/movie-ticket-booking/internal/domain"
)

// CatalogCache is a read-through cache in front of the catalog for the
// show, movie and theater lookups the booking read side repeats. Users and
// show listings always go to the catalog.
type CatalogCache struct {
	client redis.UniversalClient
	next   domain.Catalog
	ttl    time.Duration
}

func NewCatalogCache(client redis.UniversalClient, next domain.Catalog, ttl time.Duration) *CatalogCache {
	return &CatalogCache{client: client, next: next, ttl: ttl}
}

func (c *CatalogCache) FindUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return c.next.FindUser(ctx, id)
}

func (c *CatalogCache) ListShows(ctx context.Context, filter domain.ShowFilter) ([]domain.Show, error) {
	return c.next.ListShows(ctx, filter)
}

func (c *CatalogCache) FindShow(ctx context.Context, id uuid.UUID) (*domain.Show, error) {
	return readThrough(ctx, c, "catalog:show:"+id.String(), func() (*domain.Show, error) {
		return c.next.FindShow(ctx, id)
	})
}

func (c *CatalogCache) FindMovie(ctx context.Context, id uuid.UUID) (*domain.Movie, error) {
	return readThrough(ctx, c, "catalog:movie:"+id.String(), func() (*domain.Movie, error) {
		return c.next.FindMovie(ctx, id)
	})
}

func (c *CatalogCache) FindTheater(ctx context.Context, id uuid.UUID) (*domain.Theater, error) {
	return readThrough(ctx, c, "catalog:theater:"+id.String(), func() (*domain.Theater, error) {
		return c.next.FindTheater(ctx, id)
	})
}

// readThrough treats any cache failure as a miss. Not-found results are not
// cached.
func readThrough[T any](ctx context.Context, c *CatalogCache, key string, load func() (*T, error)) (*T, error) {
	if data, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var v T
		if json.Unmarshal(data, &v) == nil {
			return &v, nil
		}
	}

	v, err := load()
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(v); err == nil {
		c.client.Set(ctx, key, data, c.ttl)
	}
	return v, nil
}
