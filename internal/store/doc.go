// Package store provides persistent storage for chatvault using SQLite.
//
// # Architecture
//
// A single SQLiteStore owns the on-disk database file. The repository
// methods (users, profiles, messages, stats, progress, summaries) are
// grouped into one file per entity; every exported operation runs as
// exactly one transaction through the engine's withTx helper, which
// also performs the bounded busy-retry.
//
// # Data Models
//
//   - User: account keyed by caller-supplied id, opaque attribute document
//   - Profile: per-user configuration document, uuid id, many per user
//   - Message: append-only transcript entry, AUTOINCREMENT sequence
//   - Stat: append-only usage record, no foreign key
//   - Progress: per-profile work item, upserted on (profile, category, item)
//   - Summary: append-only per-profile conversation summary
//
// # SQLite Configuration
//
// The engine opens the file in WAL mode so readers never block on
// writers; a reader sees either the pre-write or fully committed
// post-write state. Per-connection pragmas ride on the DSN:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//	PRAGMA busy_timeout=5000;
//	PRAGMA synchronous=FULL;
//
// # Error Handling
//
// Callers match on the sentinel errors and never see raw driver
// errors:
//
//   - ErrNotFound: lookup miss
//   - ErrForeignKey: reference to a nonexistent entity
//   - ErrBusy: lock contention that outlived the internal retries
//   - ErrUnavailable: filesystem or I/O failure
//
// All methods accept context.Context for cancellation; a context
// cancelled mid-commit does not roll back a transaction that has
// already begun committing.
package store
