package ws

import "encoding/json"

// Event names on the server→client stream.
const (
	// EventDataStream carries a task payload to the owning user's devices.
	EventDataStream = "data_stream"

	// EventConnection carries a presence signal to all connected peers.
	EventConnection = "connection"
)

// Message is the frame written to client sockets.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// PresencePayload is the data of an EventConnection message.
type PresencePayload struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

// ChannelName derives the per-user channel name from an identity.
// The derivation is deterministic so every server instance computes the same
// name without coordination.
func ChannelName(userID string) string {
	return userID + "-client-devices"
}

// encodeMessage marshals a Message for the wire. Marshaling a Message cannot
// fail for the payload types used here, but the error is surfaced anyway for
// the callers that log it.
func encodeMessage(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Event: event, Data: raw})
}
