// Package expiry returns seats held past the hold TTL to AVAILABLE.
package expiry

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/movie-ticket-booking/internal/domain"
	"github.com/robertarktes/movie-ticket-booking/internal/observability"
)

const maxRetries = 3

type HoldStore interface {
	ExpiredHolds(ctx context.Context, cutoff time.Time) ([]domain.Hold, error)
	Release(ctx context.Context, showID uuid.UUID, seatIDs []uuid.UUID, holdID uuid.UUID) error
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v interface{}) error
}

type Worker struct {
	holds   HoldStore
	events  EventPublisher
	logger  observability.Logger
	ttl     time.Duration
	backoff time.Duration
	now     func() time.Time
}

type Option func(*Worker)

// WithBackoff sets the base delay between release retries; it doubles on
// each attempt.
func WithBackoff(d time.Duration) Option {
	return func(w *Worker) { w.backoff = d }
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// NewWorker builds a sweep over holds older than ttl. events may be nil.
func NewWorker(holds HoldStore, events EventPublisher, logger observability.Logger, ttl time.Duration, opts ...Option) *Worker {
	w := &Worker{
		holds:   holds,
		events:  events,
		logger:  logger,
		ttl:     ttl,
		backoff: time.Second,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	w.logger.WithField("ttl", w.ttl.String()).Info("expiry worker started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				w.logger.WithError(err).Error("expiry sweep")
			}
		}
	}
}

// Sweep releases every hold older than the TTL and returns how many were
// released. A hold that keeps failing is left for the next sweep.
func (w *Worker) Sweep(ctx context.Context) (int, error) {
	now := w.now()
	holds, err := w.holds.ExpiredHolds(ctx, now.Add(-w.ttl))
	if err != nil {
		return 0, errors.Wrap(err, "list expired holds")
	}

	released := 0
	for _, hold := range holds {
		log := w.logger.WithField("hold_id", hold.ID).WithField("show_id", hold.ShowID)
		if err := w.releaseWithRetry(ctx, hold); err != nil {
			if ctx.Err() != nil {
				return released, ctx.Err()
			}
			log.WithError(err).Error("failed to release expired hold after retries")
			continue
		}
		released++
		observability.HoldsExpired.Inc()
		log.WithField("seats", len(hold.SeatIDs)).Info("expired hold released")

		if w.events == nil {
			continue
		}
		event := domain.HoldExpiredEvent{
			HoldID:    hold.ID,
			ShowID:    hold.ShowID,
			SeatIDs:   hold.SeatIDs,
			HeldAt:    hold.HeldAt,
			ExpiredAt: now,
		}
		if err := w.events.PublishJSON(ctx, domain.EventHoldExpired, event); err != nil {
			log.WithError(err).Warn("publish hold expired")
		}
	}
	return released, nil
}

func (w *Worker) releaseWithRetry(ctx context.Context, hold domain.Hold) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = w.holds.Release(ctx, hold.ShowID, hold.SeatIDs, hold.ID); err == nil {
			return nil
		}
		if i == maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(1<<i) * w.backoff):
		}
	}
	return errors.Wrapf(err, "failed after %d retries", maxRetries)
}
