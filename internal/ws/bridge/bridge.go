// Package bridge propagates realtime event envelopes across server instances
// through a shared Redis stream. Every instance appends its envelopes to one
// well-known stream and tails the same stream, so an event published anywhere
// reaches the channel router of every process.
//
// Delivery across the bridge is at-most-once: when the broker connection is
// lost, the bridge reconnects with exponential backoff and resumes from the
// stream's current tip. Entries appended during the outage are not replayed.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"

	"github.com/taskwire/taskwire/internal/events"
)

// envelopeField is the single stream entry field carrying the serialized envelope.
const envelopeField = "envelope"

// readBlock bounds each XREAD call so the loop can observe context cancellation.
const readBlock = 5 * time.Second

// StreamClient is the subset of the go-redis client the bridge uses.
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XRead(ctx context.Context, a *redis.XReadArgs) *redis.XStreamSliceCmd
}

// Ensure the full go-redis client satisfies StreamClient
var _ StreamClient = (redis.UniversalClient)(nil)

// RedisBridge implements events.Bridge over a Redis stream. The underlying
// client is safe for concurrent use, so any number of publishing goroutines
// may call Broadcast while the subscription loop runs.
type RedisBridge struct {
	client  StreamClient
	stream  string
	handler func(events.Envelope)
	logger  *slog.Logger
}

// Ensure RedisBridge implements events.Bridge
var _ events.Bridge = (*RedisBridge)(nil)

// New creates a bridge publishing to and tailing the given stream.
func New(client StreamClient, stream string, logger *slog.Logger) *RedisBridge {
	return &RedisBridge{
		client: client,
		stream: stream,
		logger: logger.With("component", "redis_bridge", "stream", stream),
	}
}

// Broadcast serializes the envelope and appends it to the shared stream.
// A broker failure is returned to the caller, who logs it and moves on;
// local delivery never depends on this call succeeding.
func (b *RedisBridge) Broadcast(ctx context.Context, env events.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to serialize envelope: %w", err)
	}

	err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]any{envelopeField: data},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append envelope to stream: %w", err)
	}
	return nil
}

// Subscribe registers the handler invoked once per received envelope,
// including envelopes this same instance produced. Must be called before Run.
func (b *RedisBridge) Subscribe(handler func(events.Envelope)) {
	b.handler = handler
}

// Run tails the stream until the context is canceled, invoking the
// subscribed handler for every entry. On broker errors it retries with
// exponential backoff and resumes from the stream tip, dropping whatever
// was appended during the outage.
func (b *RedisBridge) Run(ctx context.Context) error {
	if b.handler == nil {
		return errors.New("bridge has no subscription handler")
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 30 * time.Second

	// "$" means "entries appended after this read starts".
	lastID := "$"

	for {
		streams, err := b.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{b.stream, lastID},
			Block:   readBlock,
			Count:   128,
		}).Result()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, redis.Nil) {
			// Block timeout with no new entries.
			continue
		}
		if err != nil {
			wait := policy.NextBackOff()
			b.logger.Warn("broker read failed, retrying",
				"error", err, "retry_in", wait)

			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}

			// Resume from the tip: no backlog replay after an outage.
			lastID = "$"
			continue
		}

		policy.Reset()

		for _, stream := range streams {
			for _, message := range stream.Messages {
				lastID = message.ID
				env, err := decodeEntry(message.Values)
				if err != nil {
					b.logger.Warn("discarding malformed stream entry",
						"error", err, "entry_id", message.ID)
					continue
				}
				b.handler(env)
			}
		}
	}
}

// decodeEntry extracts the envelope from a stream entry's field map.
func decodeEntry(values map[string]any) (events.Envelope, error) {
	raw, ok := values[envelopeField]
	if !ok {
		return events.Envelope{}, fmt.Errorf("stream entry missing %q field", envelopeField)
	}

	data, ok := raw.(string)
	if !ok {
		return events.Envelope{}, fmt.Errorf("stream entry field %q has type %T", envelopeField, raw)
	}

	var env events.Envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return events.Envelope{}, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return env, nil
}
