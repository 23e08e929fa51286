package kvstore

import (
	"context"
	"time"
)

// Store is the durable local key-value contract. Lookups report presence
// explicitly: a missing key is (zero value, false, nil), not an error.
type Store interface {
	// GetString retrieves a string value
	GetString(ctx context.Context, key string) (string, bool, error)

	// SetString stores a string value
	SetString(ctx context.Context, key, value string) error

	// GetBool retrieves a boolean value
	GetBool(ctx context.Context, key string) (bool, bool, error)

	// SetBool stores a boolean value
	SetBool(ctx context.Context, key string, value bool) error

	// GetTime retrieves a timestamp value
	GetTime(ctx context.Context, key string) (time.Time, bool, error)

	// SetTime stores a timestamp value
	SetTime(ctx context.Context, key string, value time.Time) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

const (
	boolTrue  = "true"
	boolFalse = "false"
)

// timeFormat is the wire format for timestamp values. RFC 3339 with
// nanoseconds survives a round trip through any backend.
const timeFormat = time.RFC3339Nano
