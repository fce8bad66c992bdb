package booking

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/movie-ticket-booking/internal/domain"
	"golang.org/x/sync/errgroup"
)

type BookingView struct {
	domain.Booking
	MovieTitle  string
	TheaterName string
	ShowTime    time.Time
}

type showDetails struct {
	show    *domain.Show
	movie   *domain.Movie
	theater *domain.Theater
}

// ListBookings returns the user's bookings newest first, each joined with
// its show, movie and theater.
func (s *Service) ListBookings(ctx context.Context, userID uuid.UUID) ([]BookingView, error) {
	if _, err := s.catalog.FindUser(ctx, userID); err != nil {
		return nil, errors.Wrap(err, "find user")
	}

	bookings, err := s.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "list bookings of user %s", userID)
	}

	var showIDs []uuid.UUID
	seen := make(map[uuid.UUID]struct{})
	for _, b := range bookings {
		if _, ok := seen[b.ShowID]; ok {
			continue
		}
		seen[b.ShowID] = struct{}{}
		showIDs = append(showIDs, b.ShowID)
	}

	// Each goroutine writes only its own slot.
	fetched := make([]showDetails, len(showIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, showID := range showIDs {
		g.Go(func() error {
			d, err := s.showDetails(gctx, showID)
			if err != nil {
				return err
			}
			fetched[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	details := make(map[uuid.UUID]showDetails, len(showIDs))
	for i, showID := range showIDs {
		details[showID] = fetched[i]
	}

	out := make([]BookingView, 0, len(bookings))
	for _, b := range bookings {
		d := details[b.ShowID]
		out = append(out, BookingView{
			Booking:     b,
			MovieTitle:  d.movie.Title,
			TheaterName: d.theater.Name,
			ShowTime:    d.show.StartsAt,
		})
	}
	return out, nil
}

func (s *Service) showDetails(ctx context.Context, showID uuid.UUID) (showDetails, error) {
	show, err := s.catalog.FindShow(ctx, showID)
	if err != nil {
		return showDetails{}, errors.Wrap(err, "find show")
	}
	movie, err := s.catalog.FindMovie(ctx, show.MovieID)
	if err != nil {
		return showDetails{}, errors.Wrap(err, "find movie")
	}
	theater, err := s.catalog.FindTheater(ctx, show.TheaterID)
	if err != nil {
		return showDetails{}, errors.Wrap(err, "find theater")
	}
	return showDetails{show: show, movie: movie, theater: theater}, nil
}

func (s *Service) ListShows(ctx context.Context, filter domain.ShowFilter) ([]domain.Show, error) {
	shows, err := s.catalog.ListShows(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "list shows")
	}
	return shows, nil
}

// SeatMap returns every seat of the show with its current status.
func (s *Service) SeatMap(ctx context.Context, showID uuid.UUID) ([]domain.Seat, error) {
	if _, err := s.catalog.FindShow(ctx, showID); err != nil {
		return nil, errors.Wrap(err, "find show")
	}
	seats, err := s.seats.SeatsByShow(ctx, showID)
	if err != nil {
		return nil, errors.Wrapf(err, "seats of show %s", showID)
	}
	return seats, nil
}
