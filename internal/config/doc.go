// Package config loads, normalizes, and validates Parley's TOML
// configuration. Configuration lives at ~/.config/parley/config.toml by
// default; API keys may also arrive through environment variables so the
// CLI works without a config file in CI.
package config
