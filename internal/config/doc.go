// Package config handles configuration loading and defaults.
//
// Configuration is loaded from multiple sources in priority order:
// 1. Built-in defaults (optionally reshaped by a scheduler preset)
// 2. User config file (~/.fanout/fanout.toml or OS-specific config directory)
// 3. Project config file (fanout.toml or .fanout.toml in the project root)
// 4. Environment variables (FANOUT_*)
// 5. CLI flags
//
// Each level overrides the previous one, so CLI flags take precedence.
//
// User-level config locations:
// - ~/.fanout/fanout.toml (preferred)
// - Windows: %APPDATA%\fanout\fanout.toml
// - macOS: ~/Library/Application Support/fanout/fanout.toml
// - Linux/BSD: $XDG_CONFIG_HOME/fanout/fanout.toml or ~/.config/fanout/fanout.toml
//
// Project-level config locations (overrides user config):
// - ./fanout.toml (preferred)
// - ./.fanout.toml
package config
