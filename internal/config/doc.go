// Package config loads, normalizes, and validates dicomsort configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the DICOMSORT_WORKERS environment
// override. The Config type centralizes every knob the CLI and pipeline need
// so transfer mode, worker count, archive output and NIfTI conversion are
// resolved in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
