package locks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyManager struct {
	failNext int
	calls    int
}

func (m *flakyManager) Acquire(_ context.Context, _ string, _ int) (Lock, bool, error) {
	m.calls++
	if m.failNext > 0 {
		m.failNext--
		return nil, false, errors.New("redis unavailable")
	}
	return &noOpLock{}, true, nil
}

func TestCircuitBreakerOpensAfterFailureThreshold(t *testing.T) {
	underlying := &flakyManager{failNext: 10}
	cfg := DefaultCircuitBreakerConfig()
	cfg.FailureThreshold = 3
	cfg.HealthCheckInterval = time.Hour
	cbm := NewCircuitBreakerManager(underlying, cfg)
	defer cbm.StopHealthCheck()

	for i := 0; i < 2; i++ {
		_, _, err := cbm.Acquire(context.Background(), "k", 5)
		assert.Error(t, err)
	}
	assert.Equal(t, StateClosed, cbm.GetState())

	lock, acquired, err := cbm.Acquire(context.Background(), "k", 5)
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.Equal(t, "", lock.GetValue())
	assert.Equal(t, StateOpen, cbm.GetState())
}

func TestCircuitBreakerStaysOpenUntilRecoveryWindow(t *testing.T) {
	underlying := &flakyManager{failNext: 10}
	cfg := DefaultCircuitBreakerConfig()
	cfg.FailureThreshold = 1
	cfg.OpenDuration = time.Hour
	cfg.HealthCheckInterval = time.Hour
	cbm := NewCircuitBreakerManager(underlying, cfg)
	defer cbm.StopHealthCheck()

	_, _, _ = cbm.Acquire(context.Background(), "k", 5)
	require.Equal(t, StateOpen, cbm.GetState())

	callsBefore := underlying.calls
	lock, acquired, err := cbm.Acquire(context.Background(), "k", 5)
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.Equal(t, "", lock.GetValue())
	assert.Equal(t, callsBefore, underlying.calls, "open circuit must not call the underlying manager")
}

func TestCircuitBreakerRecoversThroughHalfOpen(t *testing.T) {
	underlying := &flakyManager{failNext: 1}
	cfg := DefaultCircuitBreakerConfig()
	cfg.FailureThreshold = 1
	cfg.OpenDuration = 0
	cfg.HalfOpenMaxAttempts = 1
	cfg.HealthCheckInterval = time.Hour
	cbm := NewCircuitBreakerManager(underlying, cfg)
	defer cbm.StopHealthCheck()

	_, _, _ = cbm.Acquire(context.Background(), "k", 5)
	require.Equal(t, StateOpen, cbm.GetState())

	_, acquired, err := cbm.Acquire(context.Background(), "k", 5)
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.Equal(t, StateClosed, cbm.GetState())
}

func TestCircuitBreakerMetricsCallbacksFire(t *testing.T) {
	underlying := &flakyManager{}
	cfg := DefaultCircuitBreakerConfig()
	cfg.HealthCheckInterval = time.Hour
	cbm := NewCircuitBreakerManager(underlying, cfg)
	defer cbm.StopHealthCheck()

	var results []string
	var states []CircuitState
	cbm.SetMetrics(CircuitBreakerMetricsCallbacks{
		AcquireResult: func(result string) { results = append(results, result) },
		CircuitState:  func(state CircuitState) { states = append(states, state) },
	})
	require.Len(t, states, 1, "SetMetrics reports the current state immediately")

	_, _, err := cbm.Acquire(context.Background(), "k", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"success"}, results)
}
