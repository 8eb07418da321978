package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr)
	assert.Equal(t, "nats://localhost:4222", cfg.Bus.BootstrapServers)
	assert.Equal(t, "v23.0", cfg.Webhook.APIVersion)
	assert.Equal(t, 3, cfg.Reliability.MaxAttempts)
	assert.Equal(t, []time.Duration{5 * time.Second, 30 * time.Second, 300 * time.Second}, cfg.Reliability.RetryDelays)
	assert.Equal(t, "0.0.0.0:8090", cfg.Admin.Addr)
}

func TestParseRetryDelays(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    []time.Duration
		wantErr bool
	}{
		{name: "single", in: "5s", want: []time.Duration{5 * time.Second}},
		{name: "multiple with spaces", in: "5s, 30s,300s", want: []time.Duration{5 * time.Second, 30 * time.Second, 300 * time.Second}},
		{name: "empty", in: "", wantErr: true},
		{name: "invalid", in: "banana", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseRetryDelays(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseInt32(t *testing.T) {
	n, err := parseInt32("16")
	require.NoError(t, err)
	assert.Equal(t, int32(16), n)

	_, err = parseInt32("not-a-number")
	assert.Error(t, err)
}
