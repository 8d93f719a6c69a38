// Package store provides SQLite-backed storage for the four LendHand
// collections (users, requests, messages, notifications) and the change
// broadcast bus that live queries are built on.
//
// # Critical Patterns
//
// CP-1: Conditional Acceptance
//   - AcceptRequest is a single conditional UPDATE guarded by
//     status = 'open' AND owner_id <> acceptor, checked via RowsAffected
//   - Two racing acceptors resolve to exactly one winner; the loser gets
//     zero rows affected, never a lost update
//
// CP-2: Sequenced Changes
//   - Every write stamps the record with a strictly increasing seq from a
//     process-wide counter seeded from MAX(seq) at open
//   - Change events are published in seq order after the write commits,
//     letting a subscriber join the bus, read a snapshot, and drop events
//     with seq <= the snapshot's maximum without missing or duplicating
//
// CP-3: Deterministic Query Results
//   - Every List query orders by its sort key with an id ASC tie-break
//
// CP-4: Never Block the Writer
//   - Each watcher owns an unbounded FIFO queue; a slow consumer delays
//     only itself
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//
// Invariants on requests are also enforced at the schema level: accepted_by
// is non-null exactly when status is not 'open', and a poster can never
// accept their own request.
package store
