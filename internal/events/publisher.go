package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/taskwire/taskwire/internal/domain"
)

// LocalRouter is the per-instance delivery surface the publisher writes to.
// Implemented by ws.Hub.
type LocalRouter interface {
	// DeliverTask fans a task payload out to the identity's local sockets.
	DeliverTask(userID string, payload []byte)

	// BroadcastPresence emits a presence signal to all local sockets.
	BroadcastPresence(userID string, online bool)
}

// Bridge propagates envelopes to every other server instance.
// Implemented by bridge.RedisBridge.
type Bridge interface {
	// Broadcast publishes the envelope on the shared broker stream.
	Broadcast(ctx context.Context, env Envelope) error
}

// Publisher is the single entry point through which task mutations and
// presence changes become delivered events. It is constructed once at process
// start and passed explicitly to the HTTP layer and the hub; there is no
// ambient singleton.
//
// Publishing is fire-and-forget: local delivery is attempted first and a
// bridge failure is logged, never surfaced to the caller.
type Publisher struct {
	router LocalRouter
	bridge Bridge
	origin string
	logger *slog.Logger
}

// NewPublisher creates a Publisher with a unique origin ID for this process.
func NewPublisher(router LocalRouter, bridge Bridge, logger *slog.Logger) *Publisher {
	return &Publisher{
		router: router,
		bridge: bridge,
		origin: uuid.New().String(),
		logger: logger.With("component", "event_publisher"),
	}
}

// TaskMutated publishes a task mutation to every device session of the
// owning user, on this instance directly and on all others via the bridge.
func (p *Publisher) TaskMutated(ctx context.Context, task *domain.Task) {
	payload, err := json.Marshal(task)
	if err != nil {
		p.logger.Error("failed to serialize task event",
			"error", err, "task_id", task.ID)
		return
	}

	target := task.UserID.String()
	p.router.DeliverTask(target, payload)

	p.forward(ctx, Envelope{
		Origin:   p.origin,
		Kind:     KindTask,
		TargetID: target,
		Payload:  payload,
	})
}

// PresenceChanged forwards a local presence transition to other instances.
// The local broadcast already happened inside the hub; only the bridge leg
// remains. Wired as the hub's PresenceListener.
func (p *Publisher) PresenceChanged(userID string, online bool) {
	payload, err := json.Marshal(PresenceChange{UserID: userID, Online: online})
	if err != nil {
		p.logger.Error("failed to serialize presence event",
			"error", err, "user_id", userID)
		return
	}

	p.forward(context.Background(), Envelope{
		Origin:  p.origin,
		Kind:    KindPresence,
		Payload: payload,
	})
}

// HandleEnvelope delivers an envelope received from the broker to local
// sockets. Envelopes this instance produced are skipped: their local delivery
// already happened at publish time, and re-delivering would duplicate them.
// Wired as the bridge's subscription handler.
func (p *Publisher) HandleEnvelope(env Envelope) {
	if env.Origin == p.origin {
		return
	}

	switch env.Kind {
	case KindTask:
		p.router.DeliverTask(env.TargetID, env.Payload)
	case KindPresence:
		var change PresenceChange
		if err := json.Unmarshal(env.Payload, &change); err != nil {
			p.logger.Warn("discarding malformed presence envelope", "error", err)
			return
		}
		p.router.BroadcastPresence(change.UserID, change.Online)
	default:
		p.logger.Warn("discarding envelope of unknown kind", "kind", env.Kind)
	}
}

// forward hands an envelope to the bridge. Broker unavailability is logged
// and otherwise ignored; local delivery has already happened.
func (p *Publisher) forward(ctx context.Context, env Envelope) {
	if err := p.bridge.Broadcast(ctx, env); err != nil {
		p.logger.Warn("bridge broadcast failed, event not propagated to other instances",
			"error", fmt.Errorf("broadcast %s envelope: %w", env.Kind, err))
	}
}
