package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ChannelName is the pub/sub channel carrying inserts into table whose column
// equals value.
func ChannelName(table, column string, value any) string {
	return fmt.Sprintf("realtime:%s:%s=%v", table, column, value)
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func newRedisSubscription(ctx context.Context, client *redis.Client, channel string) (*redisSubscription, error) {
	pubsub := client.Subscribe(ctx, channel)
	// Wait for the subscribe confirmation so no publish after this call is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	s := &redisSubscription{
		pubsub: pubsub,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s, nil
}

func (s *redisSubscription) Events() <-chan Event { return s.events }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

// pump forwards messages until Close. A subscription confirmation arriving
// here means go-redis reconnected and re-subscribed.
func (s *redisSubscription) pump() {
	defer close(s.events)
	ch := s.pubsub.ChannelWithSubscriptions()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			switch m := msg.(type) {
			case *redis.Subscription:
				if m.Kind != "subscribe" {
					continue
				}
				ev = Event{Kind: EventResync}
			case *redis.Message:
				ev = Event{Kind: EventInsert, Row: Row(m.Payload)}
			default:
				continue
			}
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}
	}
}
