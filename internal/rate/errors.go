package rate

import "errors"

var (
	// ErrRedisUnavailable wraps every Redis failure returned by the limiter.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
