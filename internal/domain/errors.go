package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidPrompt   = errors.New("invalid prompt")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrProviderFailure = errors.New("provider failure")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnavailable     = errors.New("upstream unavailable")
)
