// Package config loads and validates gristmill's TOML configuration.
//
// Configuration resolves in three layers: repository defaults, the config
// file (default ~/.config/gristmill/config.toml), and explicit overrides
// from tests or the CLI. Validation is strict: a non-positive memory limit
// or an unknown enum value fails fast rather than being coerced.
package config
