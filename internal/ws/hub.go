package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// PresenceListener is notified when a user's local connection count crosses
// zero in either direction. It is used to forward presence changes to the
// cross-instance bridge.
type PresenceListener func(userID string, online bool)

// Hub is the channel router: it maintains the mapping from user identity to
// the set of live local connections and fans events out to them. It is
// authoritative for this instance only; cross-instance propagation is the
// bridge's job.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]*channel

	listener PresenceListener
	logger   *slog.Logger
}

// channel groups the live connections of one identity. Each channel carries
// its own lock so fan-out to one user never contends with another's.
type channel struct {
	mu    sync.Mutex
	conns map[*Client]struct{}

	// presenceMu serializes listener emissions for this identity. It is
	// acquired while mu is still held on a 0↔1 transition, so the listener
	// observes transitions in the order the membership actually changed.
	presenceMu sync.Mutex

	// dead marks a channel that removeIfEmpty already dropped from the
	// map. A join that fetched the channel before the removal must not
	// insert into it.
	dead bool
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		channels: make(map[string]*channel),
		logger:   logger.With("component", "ws_hub"),
	}
}

// SetPresenceListener registers the listener invoked on 0↔1 membership
// transitions. Must be called during wiring, before connections are accepted.
func (h *Hub) SetPresenceListener(listener PresenceListener) {
	h.listener = listener
}

// Join registers a connection under the channel derived from its identity.
// When this is the user's first local connection, an online presence signal
// is announced to all other local peers and to the presence listener.
func (h *Hub) Join(client *Client) {
	name := ChannelName(client.userID)

	var ch *channel
	var count int
	for {
		ch = h.getOrCreate(name)

		ch.mu.Lock()
		if ch.dead {
			// Lost a race with a last-member leave that dropped this
			// channel from the map between our lookup and this lock.
			// Inserting here would orphan the connection.
			ch.mu.Unlock()
			continue
		}
		ch.conns[client] = struct{}{}
		count = len(ch.conns)
		if count == 1 {
			ch.presenceMu.Lock()
		}
		ch.mu.Unlock()
		break
	}

	h.logger.Debug("connection joined channel",
		"user_id", client.userID,
		"member_count", count)

	if count == 1 {
		h.notifyListener(client.userID, true)
		ch.presenceMu.Unlock()
		h.broadcast(client.userID, true, client)
	}
}

// Leave removes a connection from its channel. It is idempotent: leaving an
// already-removed or never-joined connection is a no-op, which covers abrupt
// drops during handshake races. When the user's last local connection leaves,
// an offline presence signal is announced.
func (h *Hub) Leave(client *Client) {
	name := ChannelName(client.userID)

	h.mu.RLock()
	ch := h.channels[name]
	h.mu.RUnlock()
	if ch == nil {
		return
	}

	ch.mu.Lock()
	if _, member := ch.conns[client]; !member {
		ch.mu.Unlock()
		return
	}
	delete(ch.conns, client)
	count := len(ch.conns)
	if count == 0 {
		ch.presenceMu.Lock()
	}
	ch.mu.Unlock()

	h.logger.Debug("connection left channel",
		"user_id", client.userID,
		"member_count", count)

	if count == 0 {
		h.notifyListener(client.userID, false)
		ch.presenceMu.Unlock()
		h.removeIfEmpty(name)
		h.broadcast(client.userID, false, client)
	}
}

// DeliverTask fans a task payload out to every live local connection of the
// given identity. Connections whose outbound buffer rejects the message are
// removed and closed; the fan-out continues for the remaining members.
func (h *Hub) DeliverTask(userID string, payload []byte) {
	message, err := encodeMessage(EventDataStream, json.RawMessage(payload))
	if err != nil {
		h.logger.Error("failed to encode task event", "error", err, "user_id", userID)
		return
	}

	for _, client := range h.members(ChannelName(userID)) {
		h.send(client, message)
	}
}

// BroadcastPresence emits a presence signal to every local connection.
// Used for presence changes that originated on other instances.
func (h *Hub) BroadcastPresence(userID string, online bool) {
	h.broadcast(userID, online, nil)
}

// MemberCount returns the number of live local connections for an identity.
func (h *Hub) MemberCount(userID string) int {
	h.mu.RLock()
	ch := h.channels[ChannelName(userID)]
	h.mu.RUnlock()
	if ch == nil {
		return 0
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.conns)
}

// notifyListener forwards a presence transition to the listener for
// cross-instance propagation. Callers hold the channel's presenceMu, which
// keeps a leave/join race for the same identity from reaching remote
// instances in inverted order. The local broadcast is not serialized the same
// way; the listener must take no hub locks.
func (h *Hub) notifyListener(userID string, online bool) {
	if h.listener != nil {
		h.listener(userID, online)
	}
}

func (h *Hub) broadcast(userID string, online bool, except *Client) {
	message, err := encodeMessage(EventConnection, PresencePayload{
		UserID: userID,
		Online: online,
	})
	if err != nil {
		h.logger.Error("failed to encode presence event", "error", err, "user_id", userID)
		return
	}

	h.mu.RLock()
	channels := make([]*channel, 0, len(h.channels))
	for _, ch := range h.channels {
		channels = append(channels, ch)
	}
	h.mu.RUnlock()

	for _, ch := range channels {
		ch.mu.Lock()
		clients := make([]*Client, 0, len(ch.conns))
		for client := range ch.conns {
			if client != except {
				clients = append(clients, client)
			}
		}
		ch.mu.Unlock()

		for _, client := range clients {
			h.send(client, message)
		}
	}
}

// send enqueues a message for one connection; a rejected enqueue means the
// peer is gone or too slow, so the connection is torn down.
func (h *Hub) send(client *Client, message []byte) {
	if !client.enqueue(message) {
		h.logger.Debug("dropping unresponsive connection", "user_id", client.userID)
		h.Leave(client)
		client.close()
	}
}

// members snapshots a channel's connections for fan-out outside the lock.
func (h *Hub) members(name string) []*Client {
	h.mu.RLock()
	ch := h.channels[name]
	h.mu.RUnlock()
	if ch == nil {
		return nil
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	clients := make([]*Client, 0, len(ch.conns))
	for client := range ch.conns {
		clients = append(clients, client)
	}
	return clients
}

func (h *Hub) getOrCreate(name string) *channel {
	h.mu.RLock()
	ch := h.channels[name]
	h.mu.RUnlock()
	if ch != nil {
		return ch
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if ch := h.channels[name]; ch != nil {
		return ch
	}
	ch = &channel{conns: make(map[*Client]struct{})}
	h.channels[name] = ch
	return ch
}

// removeIfEmpty drops a channel from the map once its last member left.
// Re-checked under both locks because a new connection may have joined
// between the caller's observation and this call. A removed channel is
// marked dead so a join holding a stale pointer retries against the map.
func (h *Hub) removeIfEmpty(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := h.channels[name]
	if ch == nil {
		return
	}

	ch.mu.Lock()
	if len(ch.conns) == 0 {
		ch.dead = true
		delete(h.channels, name)
	}
	ch.mu.Unlock()
}
