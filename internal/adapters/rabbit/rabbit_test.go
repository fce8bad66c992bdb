package rabbit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/movie-ticket-booking/internal/adapters/rabbit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPublishConsume(t *testing.T) {
	if testing.Short() {
		t.Skip("rabbitmq container skipped in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-alpine",
			ExposedPorts: []string{"5672/tcp"},
			WaitingFor:   wait.ForLog("Server startup complete").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer container.Terminate(ctx)

	endpoint, err := container.Endpoint(ctx, "amqp")
	require.NoError(t, err)
	conn, err := amqp.Dial(endpoint)
	require.NoError(t, err)
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, "test.holds", "hold.*")
	require.NoError(t, err)
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	deliveries, err := consumer.Consume(cctx)
	require.NoError(t, err)

	pub, err := rabbit.NewPublisher(conn)
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, pub.PublishJSON(ctx, "hold.expired", map[string]string{"hold_id": "h-1"}))
	require.NoError(t, pub.PublishJSON(ctx, "booking.confirmed", map[string]string{"booking_id": "b-1"}))

	select {
	case d := <-deliveries:
		assert.Equal(t, "hold.expired", d.RoutingKey)
		assert.Equal(t, amqp.Persistent, d.DeliveryMode)
		var body map[string]string
		require.NoError(t, json.Unmarshal(d.Body, &body))
		assert.Equal(t, "h-1", body["hold_id"])
		require.NoError(t, d.Ack(false))
	case <-time.After(10 * time.Second):
		t.Fatal("no delivery")
	}

	select {
	case d := <-deliveries:
		t.Fatalf("unexpected delivery %s", d.RoutingKey)
	case <-time.After(500 * time.Millisecond):
	}
}
