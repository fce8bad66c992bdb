package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/movie-ticket-booking/internal/domain"
	"github.com/robertarktes/movie-ticket-booking/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CatalogRepository struct {
	users    *mongo.Collection
	shows    *mongo.Collection
	movies   *mongo.Collection
	theaters *mongo.Collection
	logger   observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		users:    db.Collection("users"),
		shows:    db.Collection("shows"),
		movies:   db.Collection("movies"),
		theaters: db.Collection("theaters"),
		logger:   logger,
	}
}

type UserDoc struct {
	ID    string `bson:"_id"`
	Name  string `bson:"name"`
	Email string `bson:"email"`
}

type ShowDoc struct {
	ID        string    `bson:"_id"`
	MovieID   string    `bson:"movie_id"`
	TheaterID string    `bson:"theater_id"`
	StartsAt  time.Time `bson:"starts_at"`
}

type MovieDoc struct {
	ID    string `bson:"_id"`
	Title string `bson:"title"`
}

type TheaterDoc struct {
	ID   string `bson:"_id"`
	Name string `bson:"name"`
	City string `bson:"city"`
}

// EnsureIndexes creates the indexes ListShows filters on.
func (c *CatalogRepository) EnsureIndexes(ctx context.Context) error {
	_, err := c.shows.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "movie_id", Value: 1}, {Key: "starts_at", Value: 1}}},
		{Keys: bson.D{{Key: "theater_id", Value: 1}, {Key: "starts_at", Value: 1}}},
	})
	return err
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, kind string, id uuid.UUID) (*T, error) {
	var doc T
	err := coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NewNotFound(kind, id.String())
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find %s %s", kind, id)
	}
	return &doc, nil
}

func (c *CatalogRepository) FindUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	doc, err := findOne[UserDoc](ctx, c.users, "user", id)
	if err != nil {
		return nil, err
	}
	return &domain.User{ID: id, Name: doc.Name, Email: doc.Email}, nil
}

func (c *CatalogRepository) FindShow(ctx context.Context, id uuid.UUID) (*domain.Show, error) {
	doc, err := findOne[ShowDoc](ctx, c.shows, "show", id)
	if err != nil {
		return nil, err
	}
	return doc.toDomain()
}

func (c *CatalogRepository) FindMovie(ctx context.Context, id uuid.UUID) (*domain.Movie, error) {
	doc, err := findOne[MovieDoc](ctx, c.movies, "movie", id)
	if err != nil {
		return nil, err
	}
	return &domain.Movie{ID: id, Title: doc.Title}, nil
}

func (c *CatalogRepository) FindTheater(ctx context.Context, id uuid.UUID) (*domain.Theater, error) {
	doc, err := findOne[TheaterDoc](ctx, c.theaters, "theater", id)
	if err != nil {
		return nil, err
	}
	return &domain.Theater{ID: id, Name: doc.Name, City: doc.City}, nil
}

func (c *CatalogRepository) ListShows(ctx context.Context, f domain.ShowFilter) ([]domain.Show, error) {
	filter := bson.M{}
	if f.MovieID != uuid.Nil {
		filter["movie_id"] = f.MovieID.String()
	}
	if f.TheaterID != uuid.Nil {
		filter["theater_id"] = f.TheaterID.String()
	}

	cur, err := c.shows.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "starts_at", Value: 1}}))
	if err != nil {
		c.logger.WithError(err).Error("failed to list shows")
		return nil, err
	}
	var docs []ShowDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	shows := make([]domain.Show, 0, len(docs))
	for _, d := range docs {
		s, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		shows = append(shows, *s)
	}
	return shows, nil
}

func (d ShowDoc) toDomain() (*domain.Show, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, errors.Wrap(err, "show id")
	}
	movieID, err := uuid.Parse(d.MovieID)
	if err != nil {
		return nil, errors.Wrapf(err, "movie id of show %s", d.ID)
	}
	theaterID, err := uuid.Parse(d.TheaterID)
	if err != nil {
		return nil, errors.Wrapf(err, "theater id of show %s", d.ID)
	}
	return &domain.Show{ID: id, MovieID: movieID, TheaterID: theaterID, StartsAt: d.StartsAt.UTC()}, nil
}

func upsert(ctx context.Context, coll *mongo.Collection, id string, doc interface{}) error {
	_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return err
}

func (c *CatalogRepository) SaveUser(ctx context.Context, u domain.User) error {
	return upsert(ctx, c.users, u.ID.String(), UserDoc{ID: u.ID.String(), Name: u.Name, Email: u.Email})
}

func (c *CatalogRepository) SaveMovie(ctx context.Context, m domain.Movie) error {
	return upsert(ctx, c.movies, m.ID.String(), MovieDoc{ID: m.ID.String(), Title: m.Title})
}

func (c *CatalogRepository) SaveTheater(ctx context.Context, t domain.Theater) error {
	return upsert(ctx, c.theaters, t.ID.String(), TheaterDoc{ID: t.ID.String(), Name: t.Name, City: t.City})
}

func (c *CatalogRepository) SaveShow(ctx context.Context, s domain.Show) error {
	return upsert(ctx, c.shows, s.ID.String(), ShowDoc{
		ID:        s.ID.String(),
		MovieID:   s.MovieID.String(),
		TheaterID: s.TheaterID.String(),
		StartsAt:  s.StartsAt,
	})
}
