// Package config defines the gateway configuration file format and
// its loader. Configuration is YAML with ${VAR} and ${VAR:-default}
// environment substitution, and an optional fsnotify watcher that
// reloads the file on change after validation.
package config
