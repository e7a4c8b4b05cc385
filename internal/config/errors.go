package config

import "errors"

var (
	// ErrNotFound is returned when no project file exists
	ErrNotFound = errors.New("config file not found")

	// ErrInvalidConfig is returned when the project file cannot be parsed or fails validation
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnexpectedParameters is returned for unknown targets or wrong command arity
	ErrUnexpectedParameters = errors.New("unexpected parameters")
)
