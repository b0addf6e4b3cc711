package redisstore

import "errors"

// ErrRedisUnavailable wraps transport failures from Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")
