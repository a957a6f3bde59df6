// Package events defines the envelope format shared between server instances
// and the Publisher, the single path by which a task mutation or presence
// change becomes a delivered realtime event. The Publisher writes to the
// local channel router directly and forwards the same envelope to the
// cross-instance bridge, so a bridge outage degrades delivery to
// local-sockets-only instead of failing the caller.
package events
