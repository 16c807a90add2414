// Package main hosts the narrator CLI entrypoint and command graph.
//
// The Cobra-based command tree wires configuration resolution, structured
// logging setup, and the single-instance state lock, then hands off to the
// internal packages: run drives the pipeline, state inspects and resets
// checkpoints, history reads the run ledger, check runs preflight, and
// config scaffolds the TOML file.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
