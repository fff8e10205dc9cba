package main

// Default limits for CLI commands.
const (
	DefaultActivityLimit = 20
	MaxRetries           = 10
)

// Valid record import formats.
var validFormats = []string{"auto", "json", "csv"}
