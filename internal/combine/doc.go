// Package combine merges ordered WAV segments into a single mono 16-bit
// file. It verifies sample rates with a metadata-only pass before writing
// anything, then streams PCM data in fixed-size batches so memory stays
// bounded regardless of how many segments a document produced.
package combine
