package redis

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"

	"ecoquest-service/internal/app"
	"ecoquest-service/internal/domain"
)

const userChannelPrefix = "user_updates:"

// EventRelay publishes gamification events on per-user Redis channels and
// feeds events from every instance into the local hub.
type EventRelay struct {
	client *redis.Client
	local  app.Publisher
}

func NewEventRelay(client *redis.Client, local app.Publisher) *EventRelay {
	return &EventRelay{client: client, local: local}
}

// Publish sends event to user_updates:{userID}. When Redis is unavailable the
// event is delivered to local subscribers only.
func (r *EventRelay) Publish(ctx context.Context, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("event relay: encode: %v", err)
		return
	}
	if err := r.client.Publish(ctx, userChannelPrefix+event.UserID, data).Err(); err != nil {
		log.Printf("event relay: publish for %s: %v", event.UserID, err)
		r.local.Publish(ctx, event)
	}
}

// Run forwards events from Redis to the local hub until ctx is cancelled.
// ready, if non-nil, is closed once the subscription is active.
func (r *EventRelay) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := r.client.PSubscribe(ctx, userChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("event relay: decode %s: %v", msg.Channel, err)
				continue
			}
			if event.UserID == "" {
				event.UserID = strings.TrimPrefix(msg.Channel, userChannelPrefix)
			}
			r.local.Publish(ctx, event)
		}
	}
}
