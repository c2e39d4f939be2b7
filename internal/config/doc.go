// Package config loads and validates the campus-chat YAML configuration,
// with .env support and ${VAR} environment expansion.
package config
