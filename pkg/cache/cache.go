// Package cache stores tutor responses and rendered exports keyed by content
// hash.
//
// Three backends implement [Cache]:
//   - [NullCache]: never stores anything (caching disabled)
//   - [FileCache]: one JSON file per entry, for the CLI
//   - [RedisCache]: shared cache for server deployments
//
// Keys come from a [Keyer] so that every caller hashes payloads the same
// way, and [ScopedKeyer] isolates tenants that share a backend.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by helpers that cannot express a miss as a bool.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a byte-oriented key/value store with per-entry TTL.
//
// Get reports a miss as (nil, false, nil); an error means the backend itself
// failed. A zero TTL on Set means the entry never expires.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Keyer derives cache keys.
type Keyer interface {
	// TutorKey keys a text-generation request by operation and payload.
	TutorKey(op string, payload any) string
	// ExportKey keys a rendered export by model hash and format.
	ExportKey(modelHash, format string) string
}

// DefaultKeyer is the standard [Keyer].
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// TutorKey returns "tutor:<op>:<sha256(payload)>".
func (DefaultKeyer) TutorKey(op string, payload any) string {
	return hashKey("tutor:"+op, payload)
}

// ExportKey returns "export:<format>:<modelHash>".
func (DefaultKeyer) ExportKey(modelHash, format string) string {
	return "export:" + format + ":" + modelHash
}
