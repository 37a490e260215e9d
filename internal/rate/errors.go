package rate

import "errors"

var (
	// ErrRateLimited means the attempt budget for the key is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transport failures talking to Redis.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
