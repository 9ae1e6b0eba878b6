// Package config loads, normalizes, and validates minimill configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MINIMILL_API_TOKEN and MINIMILL_STORE_DSN. The Config type centralizes every
// knob the daemon and CLI need: storage locations, upload limits, option
// defaults, the processing simulation timers, and the optional external
// backend.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
