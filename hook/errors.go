package hook

import "errors"

var (
	ErrEmptyHookID       = errors.New("hook ID cannot be empty")
	ErrHookAlreadyExists = errors.New("hook with this ID already exists")
	ErrHookNotFound      = errors.New("hook not found")
	ErrRateLimited       = errors.New("publish rate limit exceeded")
)
