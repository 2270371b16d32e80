package redis

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	// Nil is returned when a key does not exist.
	Nil = errors.New("redis: nil")

	// ErrClosed is returned when the client is closed.
	ErrClosed = errors.New("redis: client is closed")

	// ErrPoolTimeout is returned when no connection is available in the pool.
	ErrPoolTimeout = errors.New("redis: connection pool timeout")
)

// translateError maps go-redis sentinels onto this package's errors, keeping
// the original in the chain.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return fmt.Errorf("%w: %w", Nil, err)
	case errors.Is(err, redis.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	case errors.Is(err, redis.ErrPoolTimeout):
		return fmt.Errorf("%w: %w", ErrPoolTimeout, err)
	default:
		return err
	}
}

// IsNilError checks if an error is a Nil error (key not found).
func IsNilError(err error) bool {
	return errors.Is(err, Nil)
}

// IsClosedError checks if an error is due to a closed client.
func IsClosedError(err error) bool {
	return errors.Is(err, ErrClosed)
}

// IsPoolTimeoutError checks if an error is due to pool timeout.
func IsPoolTimeoutError(err error) bool {
	return errors.Is(err, ErrPoolTimeout)
}
