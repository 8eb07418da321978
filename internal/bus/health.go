package bus

import (
	"context"
	"fmt"
)

// StreamStats holds basic stats for a single stream.
type StreamStats struct {
	Name     string `json:"name"`
	Messages uint64 `json:"messages"`
	Bytes    uint64 `json:"bytes"`
}

// HealthStatus represents the bus connection health.
type HealthStatus struct {
	Connected bool          `json:"connected"`
	URL       string        `json:"url"`
	Streams   []StreamStats `json:"streams,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// HealthCheck returns the current health of the bus client, including
// per-topic stream depth.
func (c *Client) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{URL: c.cfg.URL}

	if !c.IsConnected() {
		status.Error = "not connected"
		return status
	}
	status.Connected = true

	streams, err := c.AllStreamStats(ctx)
	if err != nil {
		status.Error = fmt.Sprintf("stream stats: %v", err)
		return status
	}
	status.Streams = streams
	return status
}

// AllStreamStats returns depth stats for every topic in the registry.
func (c *Client) AllStreamStats(ctx context.Context) ([]StreamStats, error) {
	js := c.JetStream()
	if js == nil {
		return nil, ErrNotConnected
	}

	stats := make([]StreamStats, 0, len(Registry))
	for _, t := range Registry {
		name := StreamName(t.Name)
		stream, err := js.Stream(ctx, name)
		if err != nil {
			stats = append(stats, StreamStats{Name: t.Name})
			continue
		}
		info, err := stream.Info(ctx)
		if err != nil {
			stats = append(stats, StreamStats{Name: t.Name})
			continue
		}
		stats = append(stats, StreamStats{
			Name:     t.Name,
			Messages: info.State.Msgs,
			Bytes:    info.State.Bytes,
		})
	}
	return stats, nil
}
