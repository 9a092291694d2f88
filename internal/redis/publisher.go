package redis

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/playpool/tictactoe/internal/game"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel match lifecycle events go to
const DefaultChannel = "match_events"

const sendTimeout = 2 * time.Second

// Publisher forwards session lifecycle events to a Redis channel from a
// single worker goroutine. Publish never blocks the caller.
type Publisher struct {
	rdb     *redis.Client
	channel string
	events  chan game.Lifecycle
}

// NewPublisher creates a publisher with room for buffer pending events
func NewPublisher(rdb *redis.Client, channel string, buffer int) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &Publisher{
		rdb:     rdb,
		channel: channel,
		events:  make(chan game.Lifecycle, buffer),
	}
}

// Publish queues ev for delivery, dropping it when the buffer is full
func (p *Publisher) Publish(ev game.Lifecycle) {
	select {
	case p.events <- ev:
	default:
		log.Printf("[REDIS] Event buffer full, dropped %s for match %s", ev.Type, ev.MatchID)
	}
}

// Run delivers queued events until ctx is done, then flushes whatever is
// still buffered. Deliveries use their own deadline so cancellation never
// cuts one short.
func (p *Publisher) Run(ctx context.Context) {
	log.Printf("[REDIS] Publishing match events to channel %s", p.channel)
	for {
		select {
		case ev := <-p.events:
			p.send(ev)
		case <-ctx.Done():
			p.flush()
			return
		}
	}
}

func (p *Publisher) flush() {
	flushed := 0
	for {
		select {
		case ev := <-p.events:
			p.send(ev)
			flushed++
		default:
			if flushed > 0 {
				log.Printf("[REDIS] Flushed %d pending event(s) on shutdown", flushed)
			}
			return
		}
	}
}

func (p *Publisher) send(ev game.Lifecycle) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[REDIS] Error marshaling %s event: %v", ev.Type, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		log.Printf("[REDIS] Publish %s for match %s failed: %v", ev.Type, ev.MatchID, err)
	}
}
