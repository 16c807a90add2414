// Package services defines the shared error markers used to classify
// pipeline phase failures.
//
// Extraction, synthesis, and combination wrap their errors with the
// sentinels here so the pipeline runner can count retries and the CLI can
// report failure classes using errors.Is instead of string matching.
package services
