// Package ws implements the realtime delivery layer: authenticated WebSocket
// connections are grouped into per-user channels by the Hub, task events are
// fanned out to every device of the owning user, and presence signals are
// broadcast to all connected peers when a user's first connection arrives or
// last connection departs.
//
// The Hub is authoritative for connections on this process only. Propagation
// to other server instances goes through the bridge subpackage.
package ws
