package locks

import "context"

// Lock represents an acquired distributed lock.
type Lock interface {
	Refresh(ctx context.Context, ttlSeconds int) error
	Release(ctx context.Context) error
	// GetValue returns the token identifying this lock holder, or "" for a
	// lock that never touched the backing store (the circuit breaker's
	// fallback lock when Redis is unreachable).
	GetValue() string
}

// Manager can acquire locks identified by a key.
type Manager interface {
	Acquire(ctx context.Context, key string, ttlSeconds int) (Lock, bool, error)
}
