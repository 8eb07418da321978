package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zedaapi/eventspine/internal/locks"
)

type fakeLock struct{ value string }

func (l *fakeLock) Refresh(ctx context.Context, ttlSeconds int) error { return nil }
func (l *fakeLock) Release(ctx context.Context) error                 { return nil }
func (l *fakeLock) GetValue() string                                  { return l.value }

type fakeManager struct {
	lock     locks.Lock
	acquired bool
	err      error
}

func (m *fakeManager) Acquire(ctx context.Context, key string, ttlSeconds int) (locks.Lock, bool, error) {
	return m.lock, m.acquired, m.err
}

type fakeBus struct{ connected bool }

func (b *fakeBus) IsConnected() bool { return b.connected }

func TestHealthServesLivenessUnconditionally(t *testing.T) {
	h := NewHealthHandler(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"service":"eventspine"`)
}

func TestReadyReportsUnhealthyWhenRedisAcquireFails(t *testing.T) {
	h := NewHealthHandler(nil, &fakeManager{err: errors.New("redis down")})
	h.SetBusClient(&fakeBus{connected: true})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	h.Ready(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":{"status":"unhealthy"`)
}

func TestReadyReportsDegradedForFallbackLock(t *testing.T) {
	h := NewHealthHandler(nil, &fakeManager{lock: &fakeLock{value: ""}, acquired: true})
	h.SetBusClient(&fakeBus{connected: true})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	h.Ready(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "dedupe circuit open")
}

func TestReadyReportsUnhealthyWhenBusDisconnected(t *testing.T) {
	h := NewHealthHandler(nil, &fakeManager{lock: &fakeLock{value: "tok"}, acquired: true})
	h.SetBusClient(&fakeBus{connected: false})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	h.Ready(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"bus":{"status":"unhealthy"`)
}

func TestReadyRecordsMetricsPerComponent(t *testing.T) {
	h := NewHealthHandler(nil, &fakeManager{lock: &fakeLock{value: "tok"}, acquired: true})
	h.SetBusClient(&fakeBus{connected: true})

	seen := map[string]string{}
	h.SetMetrics(func(component, status string) { seen[component] = status })

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	h.Ready(rec, req)

	assert.Equal(t, "unhealthy", seen["database"], "nil db pool must report unhealthy")
	assert.Equal(t, "healthy", seen["redis"])
	assert.Equal(t, "healthy", seen["bus"])
}
