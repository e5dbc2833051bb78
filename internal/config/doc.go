// Package config loads the service configuration from an optional
// config.yaml and DOCMINE_* environment variables, then validates it.
package config
