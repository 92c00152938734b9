// Package config loads and validates the dashboard backend YAML
// configuration. Values of the form ${VAR} are expanded from the
// environment before parsing, so secrets stay out of the file.
package config
