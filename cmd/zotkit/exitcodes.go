package main

// Exit codes.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (runtime failure)
	ExitConfigError = 2 // Configuration error (missing API key or library)
)
