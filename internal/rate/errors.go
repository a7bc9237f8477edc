package rate

import "errors"

var (
	// ErrRateLimited is returned once a user exhausts the start window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps counter backend failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
