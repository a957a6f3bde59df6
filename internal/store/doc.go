// Package store defines the persistence interfaces consumed by the service
// and API layers, along with the sentinel errors store implementations
// return. Concrete implementations live under internal/platform.
package store
