// Package common defines the error taxonomy and shared constants used
// across the taskboard auth service. Callers should use errors.Is to
// match the sentinel values.
package common

import (
	"errors"
	"strings"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrConflict   = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrValidation     = errors.New("validation error")

	// Credential material errors.
	ErrInvalidToken  = errors.New("invalid token")
	ErrMalformedHash = errors.New("malformed password hash")
)

// ConfigurationError reports missing or invalid startup settings. It is
// fatal: the process must refuse to serve traffic when it is returned.
type ConfigurationError struct {
	Problems []string
}

// NewConfigurationError returns a ConfigurationError for the given problems.
func NewConfigurationError(problems ...string) *ConfigurationError {
	return &ConfigurationError{Problems: problems}
}

func (e *ConfigurationError) Error() string {
	if len(e.Problems) == 0 {
		return "configuration error"
	}
	return "configuration error: " + strings.Join(e.Problems, "; ")
}

// Add records one more problem.
func (e *ConfigurationError) Add(problem string) {
	e.Problems = append(e.Problems, problem)
}

// OrNil returns nil when no problems were recorded, so the caller can
// return the result directly as an error.
func (e *ConfigurationError) OrNil() error {
	if e == nil || len(e.Problems) == 0 {
		return nil
	}
	return e
}
