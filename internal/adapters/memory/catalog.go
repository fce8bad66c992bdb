package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/robertarktes/movie-ticket-booking/internal/domain"
)

type Catalog struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]domain.User
	shows    map[uuid.UUID]domain.Show
	movies   map[uuid.UUID]domain.Movie
	theaters map[uuid.UUID]domain.Theater
}

func NewCatalog() *Catalog {
	return &Catalog{
		users:    make(map[uuid.UUID]domain.User),
		shows:    make(map[uuid.UUID]domain.Show),
		movies:   make(map[uuid.UUID]domain.Movie),
		theaters: make(map[uuid.UUID]domain.Theater),
	}
}

func (c *Catalog) AddUser(u domain.User) {
	c.mu.Lock()
	c.users[u.ID] = u
	c.mu.Unlock()
}

func (c *Catalog) AddShow(s domain.Show) {
	c.mu.Lock()
	c.shows[s.ID] = s
	c.mu.Unlock()
}

func (c *Catalog) AddMovie(m domain.Movie) {
	c.mu.Lock()
	c.movies[m.ID] = m
	c.mu.Unlock()
}

func (c *Catalog) AddTheater(t domain.Theater) {
	c.mu.Lock()
	c.theaters[t.ID] = t
	c.mu.Unlock()
}

func (c *Catalog) FindUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.users[id]
	if !ok {
		return nil, domain.NewNotFound("user", id.String())
	}
	return &u, nil
}

func (c *Catalog) FindShow(ctx context.Context, id uuid.UUID) (*domain.Show, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.shows[id]
	if !ok {
		return nil, domain.NewNotFound("show", id.String())
	}
	return &s, nil
}

func (c *Catalog) FindMovie(ctx context.Context, id uuid.UUID) (*domain.Movie, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.movies[id]
	if !ok {
		return nil, domain.NewNotFound("movie", id.String())
	}
	return &m, nil
}

func (c *Catalog) FindTheater(ctx context.Context, id uuid.UUID) (*domain.Theater, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.theaters[id]
	if !ok {
		return nil, domain.NewNotFound("theater", id.String())
	}
	return &t, nil
}

func (c *Catalog) ListShows(ctx context.Context, f domain.ShowFilter) ([]domain.Show, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []domain.Show
	for _, s := range c.shows {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}
