package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("email already registered")
	ErrNotFound     = errors.New("refresh token not found")
	ErrInvalidInput = errors.New("invalid input")
)
