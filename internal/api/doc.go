// Package api contains the HTTP layer: request/response models, handlers,
// and the static route table that maps every entry point to its
// authentication requirement. Handlers publish a realtime event after each
// successful task mutation; event delivery never affects the HTTP response.
package api
