package outbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/movie-ticket-booking/internal/adapters/crdb"
	"github.com/robertarktes/movie-ticket-booking/internal/observability"
	"github.com/robertarktes/movie-ticket-booking/internal/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) PendingOutbox(ctx context.Context, limit int) ([]crdb.OutboxRecord, error) {
	args := m.Called(ctx, limit)
	recs, _ := args.Get(0).([]crdb.OutboxRecord)
	return recs, args.Error(1)
}

func (m *mockStore) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *mockStore) MarkAttemptFailed(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Publish(ctx context.Context, key string, msg amqp.Publishing) error {
	return m.Called(ctx, key, msg).Error(0)
}

func TestPublisher_Flush(t *testing.T) {
	ctx := context.Background()
	ok := crdb.OutboxRecord{ID: uuid.New(), EventType: "booking.confirmed", Payload: []byte(`{}`), DedupeKey: "booking.confirmed:1", CreatedAt: time.Now()}
	bad := crdb.OutboxRecord{ID: uuid.New(), EventType: "booking.confirmed", Payload: []byte(`{}`), DedupeKey: "booking.confirmed:2", CreatedAt: time.Now()}

	store := new(mockStore)
	store.On("PendingOutbox", ctx, outbox.DefaultBatchSize).Return([]crdb.OutboxRecord{ok, bad}, nil)
	store.On("MarkPublished", ctx, ok.ID, mock.AnythingOfType("time.Time")).Return(nil).Once()
	store.On("MarkAttemptFailed", ctx, bad.ID).Return(nil).Once()

	sender := new(mockSender)
	sender.On("Publish", ctx, "booking.confirmed", mock.MatchedBy(func(m amqp.Publishing) bool {
		return m.MessageId == ok.DedupeKey
	})).Return(nil).Once()
	sender.On("Publish", ctx, "booking.confirmed", mock.MatchedBy(func(m amqp.Publishing) bool {
		return m.MessageId == bad.DedupeKey
	})).Return(errors.New("channel closed")).Once()

	n, err := outbox.NewPublisher(store, sender, observability.NewDiscardLogger()).Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	store.AssertExpectations(t)
	sender.AssertExpectations(t)
}

func TestPublisher_FlushStoreError(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	store.On("PendingOutbox", ctx, outbox.DefaultBatchSize).Return(nil, errors.New("connection refused"))

	_, err := outbox.NewPublisher(store, new(mockSender), observability.NewDiscardLogger()).Flush(ctx)
	assert.Error(t, err)
}
