// Package config defines the application's configuration structures and
// loading logic. Configuration is read from environment variables (with a
// TASKWIRE_ prefix) and an optional YAML file, then validated before use.
package config
