// Package config loads, normalizes, and validates emotrack configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// EMOTRACK_STORAGE_ROOT and EMOTRACK_API_TOKEN. The Config type centralizes
// every knob the daemon and CLI need, so the storage tree, model artifacts and
// session timing are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
