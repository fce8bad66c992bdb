// Package outbox forwards events recorded next to ledger rows to RabbitMQ.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/movie-ticket-booking/internal/adapters/crdb"
	"github.com/robertarktes/movie-ticket-booking/internal/observability"
)

const DefaultBatchSize = 50

type Store interface {
	PendingOutbox(ctx context.Context, limit int) ([]crdb.OutboxRecord, error)
	MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error
	MarkAttemptFailed(ctx context.Context, id uuid.UUID) error
}

type Sender interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

type Publisher struct {
	store  Store
	sender Sender
	logger observability.Logger
	batch  int
}

func NewPublisher(store Store, sender Sender, logger observability.Logger) *Publisher {
	return &Publisher{store: store, sender: sender, logger: logger, batch: DefaultBatchSize}
}

func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	p.logger.Info("outbox publisher started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Flush(ctx); err != nil {
				p.logger.WithError(err).Error("outbox flush")
			}
		}
	}
}

// Flush forwards one batch and returns how many records were published.
// The dedupe key travels as the message id so consumers can drop replays.
func (p *Publisher) Flush(ctx context.Context) (int, error) {
	records, err := p.store.PendingOutbox(ctx, p.batch)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, rec := range records {
		log := p.logger.WithField("outbox_id", rec.ID).WithField("event_type", rec.EventType)
		msg := amqp.Publishing{
			MessageId:   rec.DedupeKey,
			ContentType: "application/json",
			Timestamp:   rec.CreatedAt,
			Body:        rec.Payload,
		}
		if err := p.sender.Publish(ctx, rec.EventType, msg); err != nil {
			observability.RabbitPublishRetries.Inc()
			log.WithError(err).Warn("publish outbox record")
			if err := p.store.MarkAttemptFailed(ctx, rec.ID); err != nil {
				log.WithError(err).Error("mark outbox attempt failed")
			}
			continue
		}
		if err := p.store.MarkPublished(ctx, rec.ID, time.Now().UTC()); err != nil {
			log.WithError(err).Error("mark outbox published")
			continue
		}
		published++
	}
	if len(records) > 0 {
		observability.OutboxLag.Set(time.Since(records[0].CreatedAt).Seconds())
	}
	return published, nil
}
