// Package state persists per-document pipeline checkpoints and exposes the
// closed status enum that drives the pipeline state machine.
//
// Each input document maps to exactly one JSON record keyed by a fingerprint
// derived from its absolute path. Records are written atomically after every
// phase transition so an interrupted run resumes at the next unfinished
// phase. Unknown statuses and invariant violations are surfaced as
// CorruptionError rather than silently repaired.
//
// Treat this package as the single source of truth for checkpoint
// semantics; new statuses or fields belong here.
package state
