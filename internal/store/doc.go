// Package store provides the SQLite-backed build cache of a project.
//
// The store keeps two kinds of records:
//   - Asset digests: the md5 of each asset file, valid while the file's size
//     and modification time are unchanged
//   - Builds: an append-only history of completed builds with the project
//     fingerprint, per-target hashes, output path and warnings
//
// # Ordering
//
// History is ordered by the seq column, never by timestamps, so two builds
// recorded within the same clock tick still list in the order they ran.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// # Schema
//
// The schema lives in migrations/ as goose SQL migrations and is brought up
// to date by Open. Add a numbered file to change it; never edit an applied
// one.
//
// Fingerprints are computed by ir.ProjectHash and ir.TargetHash over
// canonical JSON.
package store
