package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// EventsChannel is the Redis channel every classroom broadcast is mirrored to.
	EventsChannel  = "classroom:events"
	publishTimeout = 5 * time.Second
	mirrorBuffer   = 1024
)

// MirrorEvent is the message published to Redis for each broadcast.
type MirrorEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	At    int64           `json:"at"` // Unix milliseconds
}

// RedisPubSub mirrors classroom broadcasts onto a Redis channel for external observers.
// Publish only enqueues; Run does the network I/O.
type RedisPubSub struct {
	client  *redis.Client
	channel string
	queue   chan MirrorEvent
	logger  *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for classroom events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{
		client:  client,
		channel: EventsChannel,
		queue:   make(chan MirrorEvent, mirrorBuffer),
		logger:  logger,
	}
}

// Publish queues an event for the mirror. It drops the event when the queue is full.
func (r *RedisPubSub) Publish(event string, data []byte) {
	select {
	case r.queue <- MirrorEvent{Event: event, Data: data, At: time.Now().UnixMilli()}:
	default:
		r.logger.Warn("mirror queue full, event dropped", zap.String("event", event))
	}
}

// Run publishes queued events until ctx is done.
func (r *RedisPubSub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.queue:
			if err := r.publish(ctx, ev); err != nil {
				r.logger.Warn("mirror publish failed", zap.String("event", ev.Event), zap.Error(err))
			}
		}
	}
}

func (r *RedisPubSub) publish(ctx context.Context, ev MirrorEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, r.channel, body).Err()
}

// Subscribe listens on the events channel and calls handler for each message.
// Returns a cancel function to stop the subscription.
func (r *RedisPubSub) Subscribe(handler func(ev MirrorEvent)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev MirrorEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.logger.Debug("skip malformed mirror event", zap.Error(err))
					continue
				}
				handler(ev)
			}
		}
	}()
	return cancelCtx, nil
}
