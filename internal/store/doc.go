// Package store provides a SQLite journal of propagation passes.
//
// The journal is append-only diagnostic output:
//   - Graphs: canonical graph definitions keyed by content hash
//   - Passes: one row per propagation pass
//   - Recomputes: one row per recomputation inside a pass
//
// Nothing reads the journal back into a reactor; it exists for the trace
// command and for tests that inspect propagation after the fact.
//
// # Ordering
//
// Rows carry a logical seq from the reactor clock. Queries order by
// seq ASC, id ASC COLLATE BINARY and never by wall time.
//
// # Idempotency
//
// Recompute ids are content-addressed (ir.RecomputeID), so writing the same
// record twice is a no-op. Passes are upserted: a pass is written when it
// starts and again with its final step count.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Recomputes must reference a written pass
package store
