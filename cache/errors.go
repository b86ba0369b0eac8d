package cache

import "errors"

var (
	// ErrMiss indicates the key is not cached or has expired.
	ErrMiss = errors.New("cache miss")

	// ErrInvalidSize indicates a non-positive cache capacity.
	ErrInvalidSize = errors.New("cache size must be positive")
)
