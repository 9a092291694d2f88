package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/playpool/tictactoe/internal/game"
	"github.com/playpool/tictactoe/internal/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepRecorder struct {
	steps []string
}

type fakeServer struct{ rec *stepRecorder }

func (s fakeServer) Shutdown(ctx context.Context) error {
	s.rec.steps = append(s.rec.steps, "http")
	return nil
}

type fakeSessions struct {
	rec     *stepRecorder
	onClose func()
}

func (s fakeSessions) Close(ctx context.Context) error {
	s.rec.steps = append(s.rec.steps, "sessions")
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

func TestShutdownOrder(t *testing.T) {
	rec := &stepRecorder{}
	shutdown(context.Background(), fakeServer{rec}, fakeSessions{rec: rec},
		func() { rec.steps = append(rec.steps, "feed") },
		func() { rec.steps = append(rec.steps, "hub") },
	)
	assert.Equal(t, []string{"http", "sessions", "feed", "hub"}, rec.steps)
}

func TestEventsFromClosingSessionsReachRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := redis.Connect("redis://" + mr.Addr())
	require.NoError(t, err)
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := rdb.Subscribe(ctx, redis.DefaultChannel)
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	publisher := redis.NewPublisher(rdb, "", 8)
	stopFeed := startFeed(publisher)

	rec := &stepRecorder{}
	sessions := fakeSessions{rec: rec, onClose: func() {
		publisher.Publish(game.Lifecycle{
			Type:    game.LifecycleMatchAbandoned,
			MatchID: "0xdead",
			Phase:   game.PhaseAbandoned,
			Reason:  "Server is shutting down. Please find a new match later.",
		})
	}}
	shutdown(context.Background(), fakeServer{rec}, sessions, stopFeed)

	select {
	case msg := <-sub.Channel():
		var ev game.Lifecycle
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		assert.Equal(t, game.LifecycleMatchAbandoned, ev.Type)
		assert.Equal(t, "0xdead", ev.MatchID)
	case <-time.After(2 * time.Second):
		t.Fatal("event published during session shutdown was lost")
	}
}
