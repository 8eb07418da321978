package bus

import "errors"

// Sentinel errors for bus operations.
var (
	ErrNotConnected   = errors.New("bus: not connected")
	ErrInvalidConfig  = errors.New("bus: invalid configuration")
	ErrDrainTimeout   = errors.New("bus: drain timeout")
	ErrUnknownTopic   = errors.New("bus: unknown topic")
	ErrPublishFailed  = errors.New("bus: publish failed")
)
