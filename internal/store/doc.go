// Package store provides SQLite-backed durable storage for form drafts.
//
// The store keeps:
//   - Drafts: one whole-record JSON blob per draft key, replaced on every
//     write, with a per-key version counter bumped on each replace
//   - Draft index: key, last-saved time and flags for every draft, used by
//     crash scans without decoding every record
//   - Submission log: when each key was last successfully submitted
//
// # Reads Never Fail On Bad Data
//
// A stored record that cannot be decoded is logged and reported as absent.
// Callers only see errors for I/O failures.
//
// # Legacy Records
//
// SetLegacy writes the bare submission without draft metadata. It is the
// fallback used when a full write fails; Get upgrades such rows into a Record
// with Legacy set.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Path ":memory:" opens a private in-memory database.
package store
