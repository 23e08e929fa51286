// Package kvstore provides the durable local key-value store used for
// session flags, role assignments and access-grant records.
//
// The contract is a flat, synchronous, crash-tolerant mapping from string
// keys to typed values (strings, booleans, timestamps). Three backends are
// provided:
//
//   - SQLStore: a single-table store over database/sql, works with the
//     sqlite3 and postgres drivers
//   - RedisStore: a go-redis backed store for deployments that already run
//     Redis
//   - MemoryStore: an in-process map, used in tests and as a scratch store
//
// Callers own key shapes through typed adapters (see pkg/rbac and
// pkg/session); this package never interprets keys.
package kvstore
