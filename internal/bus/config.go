package bus

import "time"

// Config holds the bus connection settings. Field names mirror the logical
// KAFKA_* variables operators configure; internally they are mapped onto
// the NATS client used to realize the partitioned log.
type Config struct {
	URL              string
	ConsumerGroupID  string
	ConnectTimeout   time.Duration
	ReconnectWait    time.Duration
	MaxReconnects    int
	PublishTimeout   time.Duration
	DrainTimeout     time.Duration
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		URL:             "nats://localhost:4222",
		ConsumerGroupID: "eventspine",
		ConnectTimeout:  10 * time.Second,
		ReconnectWait:   2 * time.Second,
		MaxReconnects:   -1,
		PublishTimeout:  5 * time.Second,
		DrainTimeout:    30 * time.Second,
	}
}

// Validate checks that the config has required fields.
func (c Config) Validate() error {
	if c.URL == "" {
		return ErrInvalidConfig
	}
	if c.ConsumerGroupID == "" {
		return ErrInvalidConfig
	}
	return nil
}
