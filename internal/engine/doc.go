// Package engine implements the draft session: the object that owns one
// in-progress Submission and keeps it durable while the user edits it.
//
// ARCHITECTURE:
//
// Single Logical Writer:
// A Session guards all of its state with one mutex. Edits, timer callbacks
// and environment signals (visibility, unload) all serialize on it, so writes
// to the draft store are issued in the order they were requested and a later
// forced write always wins over an earlier one.
//
// Independent Timers:
// Each deferred concern owns its own named Debouncer:
//   - save: persistence debounce (default 2s)
//   - validate: step validation debounce (default 500ms)
//   - score: derived score recomputation (default 500ms)
//   - scan / user-scan: settle delay before crash and user-draft scans
//   - celebrate: auto-clear of the score celebration flag
//
// Rapid edits restart only the timer of the concern they touch. A replaced
// timer can never run stale work: every Debouncer checks a generation
// counter before firing.
//
// Components:
//   - Migrator moves drafts from provisional keys to the canonical key
//   - Detector finds crash candidates and drafts belonging to a user
//   - Validation maps free-text validator messages onto field paths
//   - Hub fans session events out to subscribers (UI, harness traces)
//   - Metrics counts writes, migrations, crash candidates and recomputes
//
// ERROR POLICY:
// Everything below Submit favors availability. Store failures, corrupt
// drafts and migration failures are logged and the session keeps going.
// Submit is the only operation that returns a user-facing error, as a
// *SubmitError.
package engine
