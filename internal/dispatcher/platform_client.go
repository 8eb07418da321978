package dispatcher

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// ClientConfig configures the pooled outbound HTTP client used to call the
// platform's Graph API.
type ClientConfig struct {
	Timeout         time.Duration
	MaxIdleConns    int
	MaxConnsPerHost int
	IdleConnTimeout time.Duration
}

// DefaultClientConfig holds sane outbound transport defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:         10 * time.Second,
		MaxIdleConns:    100,
		MaxConnsPerHost: 20,
		IdleConnTimeout: 90 * time.Second,
	}
}

// NewHTTPClient builds a connection-pooled, timeout-bounded http.Client for
// outbound Graph API calls, with TLS 1.2 as the floor and redirects capped
// to 10 hops.
func NewHTTPClient(cfg ClientConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.Timeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}
