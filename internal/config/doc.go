// Package config loads, normalizes, and validates narrator configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files resolved from the --config flag, the
// default user config location, or a project-local narrator.toml. Always
// obtain settings through this package so downstream code receives sanitized
// paths and clear validation errors.
package config
