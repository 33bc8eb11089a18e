// Package config loads, normalizes, and validates the carecount configuration.
// Values are read once at process start from a TOML file and are immutable
// afterwards; every component receives the loaded Config by injection.
package config
