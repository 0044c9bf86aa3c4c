// Package config provides configuration loading and validation for the speech capture client.
// It handles YAML-based configuration with per-section struct validation covering capture,
// upload, status HTTP and logging parameters.
package config
