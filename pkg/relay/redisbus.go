package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus adapts a shared Redis client to the Bus interface. The client's
// connection pool is process wide; each Subscribe hands out a subscription
// handle owned exclusively by one session.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, channel)

	// Force the SUBSCRIBE round trip so a dead bus fails here, not on the
	// first read.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	sub := &redisSubscription{
		pubsub:   pubsub,
		messages: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
	go sub.pump(pubsub.Channel())
	return sub, nil
}

type redisSubscription struct {
	pubsub    *redis.PubSub
	messages  chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// pump copies payloads from the pub/sub channel until the source closes or
// the handle is closed. The send also selects on done: with the session gone
// there is no receiver, and a backlog of queued payloads must not pin this
// goroutine past Close.
func (s *redisSubscription) pump(src <-chan *redis.Message) {
	defer close(s.messages)
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-src:
			if !ok {
				return
			}
			select {
			case s.messages <- []byte(msg.Payload):
			case <-s.done:
				return
			}
		}
	}
}

func (s *redisSubscription) Messages() <-chan []byte {
	return s.messages
}

// Close unsubscribes, releases the handle and unblocks the pump goroutine.
// Safe to call more than once.
func (s *redisSubscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	if s.pubsub == nil {
		return nil
	}
	return s.pubsub.Close()
}
