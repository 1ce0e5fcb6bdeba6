package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/pkg/circuitbreaker"
	"github.com/jwalitptl/clinic-scheduler/pkg/messaging"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisBroker_PublishSubscribe(t *testing.T) {
	_, client := setupTestRedis(t)
	broker := NewRedisBrokerFromClient(client, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	publisher := messaging.NewChannelPublisher(broker, "clinic")
	msgs, err := broker.Subscribe(ctx, publisher.Channel("appointment.completed"))
	require.NoError(t, err)

	require.NoError(t, publisher.Publish(ctx, "appointment.completed", []byte(`{"id":"1"}`)))

	select {
	case msg := <-msgs:
		assert.JSONEq(t, `{"id":"1"}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestRedisBroker_Ping(t *testing.T) {
	mr, client := setupTestRedis(t)
	broker := NewRedisBrokerFromClient(client, zerolog.Nop())

	assert.NoError(t, broker.Ping(context.Background()))

	mr.Close()
	assert.Error(t, broker.Ping(context.Background()))
}

func TestRedisBroker_BreakerOpensWhenRedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	broker := NewRedisBrokerFromClient(client, zerolog.Nop())
	mr.Close()

	var err error
	for i := 0; i < 6; i++ {
		err = broker.Publish(context.Background(), "clinic.test", []byte(`{}`))
	}
	require.Error(t, err)
	assert.True(t, errors.Is(err, circuitbreaker.ErrOpen))
}

func TestChannelPublisher_Channel(t *testing.T) {
	assert.Equal(t, "clinic.appointment.cancelled", messaging.NewChannelPublisher(nil, "clinic.").Channel("appointment.cancelled"))
	assert.Equal(t, "appointment.cancelled", messaging.NewChannelPublisher(nil, "").Channel("appointment.cancelled"))
}
