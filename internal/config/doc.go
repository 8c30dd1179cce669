// Package config loads and validates the controller configuration.
//
// Configuration is resolved in three layers: compiled-in baseline values,
// TLR_* environment overrides, and an optional config.json in the working
// directory. The merged result is validated before any component starts.
package config
