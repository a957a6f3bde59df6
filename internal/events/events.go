package events

import "encoding/json"

// Envelope kinds carried on the broker stream.
const (
	// KindTask envelopes carry a task payload targeted at one identity.
	KindTask = "task"

	// KindPresence envelopes carry an online/offline signal for all peers.
	KindPresence = "presence"
)

// Envelope is the immutable unit propagated across server instances. The
// payload is opaque: the distribution layer never inspects it beyond routing
// on TargetID.
type Envelope struct {
	// Origin identifies the instance that produced the envelope. Instances
	// skip their own envelopes on the subscription path, since local
	// delivery already happened at publish time.
	Origin string `json:"origin"`

	// Kind is KindTask or KindPresence.
	Kind string `json:"kind"`

	// TargetID is the owning identity for task envelopes; empty for
	// presence envelopes, which address all peers.
	TargetID string `json:"target_id,omitempty"`

	// Payload is the serialized event data.
	Payload json.RawMessage `json:"payload"`
}

// PresenceChange is the payload of a KindPresence envelope.
type PresenceChange struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}
