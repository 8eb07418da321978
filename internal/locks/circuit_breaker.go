package locks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// CircuitState is the state of a CircuitBreakerManager.
type CircuitState int32

const (
	StateClosed   CircuitState = 0
	StateOpen     CircuitState = 1
	StateHalfOpen CircuitState = 2
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig tunes how quickly a CircuitBreakerManager gives up
// on a failing Redis backend and how it probes for recovery.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	OpenDuration        time.Duration
	HalfOpenMaxAttempts int
	HealthCheckInterval time.Duration
}

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:    3,
		OpenDuration:        30 * time.Second,
		HalfOpenMaxAttempts: 2,
		HealthCheckInterval: 10 * time.Second,
	}
}

// CircuitBreakerManager wraps a Manager (in practice RedisManager) so that
// a struggling Redis deployment degrades the webhook and dispatcher's
// at-least-once dedupe guard into fail-open (duplicate deliveries, never
// dropped ones) instead of blocking every request on Redis timeouts.
type CircuitBreakerManager struct {
	underlying          Manager
	config              CircuitBreakerConfig
	state               atomic.Int32
	consecutiveFailures atomic.Int32
	halfOpenAttempts    atomic.Int32
	lastFailureTime     atomic.Int64
	mu                  sync.Mutex
	healthCheckTicker   *time.Ticker
	stopHealthCheck     chan struct{}
	isHealthChecking    bool

	onAcquireResult func(result string)
	onCircuitState  func(state CircuitState)
}

// CircuitBreakerMetricsCallbacks wires the manager's Prometheus counters.
type CircuitBreakerMetricsCallbacks struct {
	AcquireResult func(result string)
	CircuitState  func(state CircuitState)
}

func NewCircuitBreakerManager(underlying Manager, config CircuitBreakerConfig) *CircuitBreakerManager {
	cbm := &CircuitBreakerManager{
		underlying:      underlying,
		config:          config,
		stopHealthCheck: make(chan struct{}),
	}
	cbm.state.Store(int32(StateClosed))
	cbm.startHealthCheck()
	return cbm
}

// Acquire delegates to the underlying manager while closed, trips open
// after FailureThreshold consecutive failures, and returns a no-op lock
// (read: "treat this key as new every time") while open so callers never
// block on a dead Redis.
func (cbm *CircuitBreakerManager) Acquire(ctx context.Context, key string, ttlSeconds int) (Lock, bool, error) {
	switch CircuitState(cbm.state.Load()) {
	case StateClosed:
		return cbm.tryAcquire(ctx, key, ttlSeconds)

	case StateOpen:
		if !cbm.shouldAttemptRecovery() {
			return &noOpLock{}, true, nil
		}
		cbm.transitionTo(StateHalfOpen)
		fallthrough

	case StateHalfOpen:
		lock, acquired, err := cbm.tryAcquire(ctx, key, ttlSeconds)
		if err != nil || cbm.GetState() == StateOpen {
			cbm.transitionTo(StateOpen)
			return &noOpLock{}, true, nil
		}
		if cbm.halfOpenAttempts.Add(1) >= int32(cbm.config.HalfOpenMaxAttempts) {
			cbm.transitionTo(StateClosed)
			cbm.consecutiveFailures.Store(0)
			cbm.halfOpenAttempts.Store(0)
		}
		return lock, acquired, nil

	default:
		return &noOpLock{}, true, errors.New("circuit breaker in unknown state")
	}
}

func (cbm *CircuitBreakerManager) tryAcquire(ctx context.Context, key string, ttlSeconds int) (Lock, bool, error) {
	lock, acquired, err := cbm.underlying.Acquire(ctx, key, ttlSeconds)
	if err != nil {
		cbm.recordFailure()
		cbm.reportAcquire("failure")

		if cbm.consecutiveFailures.Load() >= int32(cbm.config.FailureThreshold) {
			cbm.transitionTo(StateOpen)
			return &noOpLock{}, true, nil
		}
		return nil, false, err
	}

	cbm.consecutiveFailures.Store(0)
	cbm.reportAcquire("success")
	return lock, acquired, nil
}

func (cbm *CircuitBreakerManager) recordFailure() {
	cbm.consecutiveFailures.Add(1)
	cbm.lastFailureTime.Store(time.Now().Unix())
}

func (cbm *CircuitBreakerManager) shouldAttemptRecovery() bool {
	lastFailure := cbm.lastFailureTime.Load()
	if lastFailure == 0 {
		return true
	}
	return time.Since(time.Unix(lastFailure, 0)) >= cbm.config.OpenDuration
}

func (cbm *CircuitBreakerManager) transitionTo(newState CircuitState) {
	oldState := CircuitState(cbm.state.Swap(int32(newState)))
	if oldState == newState {
		return
	}
	if newState == StateHalfOpen {
		cbm.halfOpenAttempts.Store(0)
	}
	cbm.mu.Lock()
	cb := cbm.onCircuitState
	cbm.mu.Unlock()
	if cb != nil {
		cb(newState)
	}
}

func (cbm *CircuitBreakerManager) reportAcquire(result string) {
	cbm.mu.Lock()
	cb := cbm.onAcquireResult
	cbm.mu.Unlock()
	if cb != nil {
		cb(result)
	}
}

// GetState returns the breaker's current state, surfaced by the readiness
// probe so a fail-open dedupe guard shows up as "degraded", not "healthy".
func (cbm *CircuitBreakerManager) GetState() CircuitState {
	return CircuitState(cbm.state.Load())
}

// SetMetrics wires the breaker's Prometheus callbacks. Calling it also
// emits the current state once so the gauge isn't left at its zero value
// before the first transition.
func (cbm *CircuitBreakerManager) SetMetrics(callbacks CircuitBreakerMetricsCallbacks) {
	cbm.mu.Lock()
	cbm.onAcquireResult = callbacks.AcquireResult
	cbm.onCircuitState = callbacks.CircuitState
	cbm.mu.Unlock()
	if callbacks.CircuitState != nil {
		callbacks.CircuitState(cbm.GetState())
	}
}

func (cbm *CircuitBreakerManager) startHealthCheck() {
	cbm.mu.Lock()
	defer cbm.mu.Unlock()
	if cbm.isHealthChecking {
		return
	}
	cbm.healthCheckTicker = time.NewTicker(cbm.config.HealthCheckInterval)
	cbm.isHealthChecking = true

	go func() {
		for {
			select {
			case <-cbm.healthCheckTicker.C:
				cbm.performHealthCheck()
			case <-cbm.stopHealthCheck:
				return
			}
		}
	}()
}

func (cbm *CircuitBreakerManager) performHealthCheck() {
	if cbm.GetState() != StateOpen {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	lock, acquired, err := cbm.underlying.Acquire(ctx, "lock_circuit_breaker:health_check", 5)
	if err == nil && acquired && lock != nil {
		_ = lock.Release(context.Background())
		if cbm.shouldAttemptRecovery() {
			cbm.transitionTo(StateHalfOpen)
		}
	}
}

// StopHealthCheck stops the background probe goroutine. Safe to call once.
func (cbm *CircuitBreakerManager) StopHealthCheck() {
	cbm.mu.Lock()
	defer cbm.mu.Unlock()
	if !cbm.isHealthChecking {
		return
	}
	cbm.isHealthChecking = false
	close(cbm.stopHealthCheck)
	if cbm.healthCheckTicker != nil {
		cbm.healthCheckTicker.Stop()
	}
}

type noOpLock struct{}

func (l *noOpLock) Refresh(ctx context.Context, ttlSeconds int) error { return nil }
func (l *noOpLock) Release(ctx context.Context) error                 { return nil }
func (l *noOpLock) GetValue() string                                  { return "" }
