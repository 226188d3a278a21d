// Package store provides durable scenario repositories.
//
// Three backends implement scenario.Repository:
//   - SQLite (Open): the scenario document plus an append-only pass history
//     of module transitions and finished-pass receipts
//   - JSON file (NewFileRepository): one indented document, replaced atomically
//   - Redis (NewRedisRepository): one key per scenario plus a capped receipt list
//
// # Critical Patterns
//
// Logical ordering: history queries order by seq ASC, never by timestamp,
// so listings are identical regardless of wall-clock skew.
//
// Idempotent writes: history inserts use ON CONFLICT DO NOTHING, so an
// observer retried after a transient failure never duplicates an event.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
