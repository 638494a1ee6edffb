// Package config loads, normalizes, and validates clipmill configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CLIPMILL_PROXY. The Config type centralizes every knob a batch run needs:
// working directories, the manifest location, pool size, tool binaries, the
// upload destination, and the progress ledger backend.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and clear validation errors.
package config
