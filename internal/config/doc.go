// Package config loads, normalizes, and validates the TOML configuration for
// retag. Defaults come from the repository; user values are merged on top
// from ~/.config/retag/config.toml or a project-local retag.toml.
package config
