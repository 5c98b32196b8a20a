// Package config loads NodeFlow configuration from defaults, a YAML file
// and NODEFLOW_* environment variables, validates it, and watches the file
// for changes.
package config
