package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"anoa.com/realmkeeper/pkg/metrics"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const channelPrefix = "realm_events:"

// Subscription is one listener on one realm's event stream. C is closed
// when the subscription ends, either by Unsubscribe or because the bus
// dropped a listener that stopped draining its channel.
type Subscription struct {
	RealmID uuid.UUID
	C       <-chan Event

	ch chan Event
}

// Bus fans domain events out to per-realm subscriber sets. When a redis
// client is configured, events are also relayed to other server instances.
type Bus struct {
	mu          sync.Mutex
	subscribers map[uuid.UUID]map[*Subscription]struct{}
	bufferSize  int
	closed      bool

	redisClient *redis.Client
	instanceID  string
}

type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

func NewBus(redisClient *redis.Client, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 32
	}
	return &Bus{
		subscribers: make(map[uuid.UUID]map[*Subscription]struct{}),
		bufferSize:  bufferSize,
		redisClient: redisClient,
		instanceID:  uuid.NewString(),
	}
}

// Publish delivers evt to every local subscriber of evt.RealmID and, when
// configured, to redis. It never blocks on a subscriber.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	metrics.EventsPublished.WithLabelValues(string(evt.Type)).Inc()
	b.deliver(evt)

	if b.redisClient == nil {
		return
	}

	payload, err := json.Marshal(envelope{Origin: b.instanceID, Event: evt})
	if err != nil {
		slog.Error("encode realm event", "type", evt.Type, "error", err)
		return
	}
	if err := b.redisClient.Publish(ctx, channelPrefix+evt.RealmID.String(), payload).Err(); err != nil {
		slog.Warn("relay realm event to redis", "type", evt.Type, "realm_id", evt.RealmID, "error", err)
	}
}

func (b *Bus) deliver(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subscribers[evt.RealmID] {
		select {
		case sub.ch <- evt:
		default:
			slog.Warn("dropping stalled event subscriber", "realm_id", evt.RealmID)
			metrics.EventSubscribersDropped.Inc()
			b.removeLocked(sub)
		}
	}
}

// Subscribe registers a listener for realmID. Callers must Unsubscribe.
func (b *Bus) Subscribe(realmID uuid.UUID) *Subscription {
	ch := make(chan Event, b.bufferSize)
	sub := &Subscription{RealmID: realmID, C: ch, ch: ch}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return sub
	}

	set, ok := b.subscribers[realmID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subscribers[realmID] = set
	}
	set[sub] = struct{}{}
	metrics.EventSubscribers.Inc()
	return sub
}

// Unsubscribe removes sub. It is safe to call more than once.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

func (b *Bus) removeLocked(sub *Subscription) {
	set, ok := b.subscribers[sub.RealmID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subscribers, sub.RealmID)
	}
	close(sub.ch)
	metrics.EventSubscribers.Dec()
}

// SubscriberCount returns the number of listeners on realmID.
func (b *Bus) SubscriberCount(realmID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[realmID])
}

// Close ends every subscription; later Subscribe calls get closed channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, set := range b.subscribers {
		for sub := range set {
			b.removeLocked(sub)
		}
	}
	b.closed = true
}

// Relay forwards events published by other instances to local subscribers
// until ctx is cancelled.
func (b *Bus) Relay(ctx context.Context) error {
	if b.redisClient == nil {
		return nil
	}

	pubsub := b.redisClient.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	// Wait for confirmation that subscription is created
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to realm events: %w", err)
	}
	slog.Info("realm event relay started", "instance_id", b.instanceID)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handleRelayed(msg.Channel, msg.Payload)
		}
	}
}

func (b *Bus) handleRelayed(channel, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		slog.Warn("discarding malformed relayed event", "channel", channel, "error", err)
		return
	}
	if env.Origin == b.instanceID {
		return
	}
	if !env.Event.Valid() {
		slog.Warn("discarding invalid relayed event", "channel", channel, "type", env.Event.Type)
		return
	}
	if strings.TrimPrefix(channel, channelPrefix) != env.Event.RealmID.String() {
		slog.Warn("discarding relayed event with mismatched realm", "channel", channel)
		return
	}
	b.deliver(env.Event)
}
