// Package store persists countdown state in a shared key-value store
// so a room's remaining seconds survive process handoff and can be read
// by any server instance.
package store

import "context"

// Store is a minimal networked key-value contract: per-key atomicity,
// no transactions, last writer wins.
type Store interface {
	Set(ctx context.Context, key string, seconds int) error
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (int, bool, error)
	Delete(ctx context.Context, key string) error
}
