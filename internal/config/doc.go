// Package config handles configuration loading, parsing, and validation
// from environment variables prefixed with BPM_ and an optional config.yaml.
// It provides type-safe access to application settings needed by the server,
// the bpmctl command and the background job runner.
package config
