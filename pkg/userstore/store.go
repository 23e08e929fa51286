package userstore

import (
	"context"
)

// Store is the local user record contract. Lookups report presence
// explicitly: a missing record is (nil, nil), not an error.
type Store interface {
	// Get retrieves a record by provider user id
	Get(ctx context.Context, id string) (*UserRecord, error)

	// GetAll returns every stored record
	GetAll(ctx context.Context) ([]*UserRecord, error)

	// FindByEmail retrieves a record by lower-cased email
	FindByEmail(ctx context.Context, email string) (*UserRecord, error)

	// FindByUsername retrieves a record by case-insensitive username match
	FindByUsername(ctx context.Context, username string) (*UserRecord, error)

	// Put inserts or replaces a record keyed by its ID
	Put(ctx context.Context, record *UserRecord) error

	// Delete removes a record. Deleting an absent record is not an error.
	Delete(ctx context.Context, id string) error
}
