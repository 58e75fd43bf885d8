package msgbroker

import (
	"fmt"
	"time"
)

// DefaultRegisterHandlerConfig is the registration config applied when no
// options are given.
var DefaultRegisterHandlerConfig = RegisterHandlerConfig{
	AckDeadline: time.Second * 10,
}

// RegisterHandlerConfig bundles handler registration knobs.
type RegisterHandlerConfig struct {
	AckDeadline time.Duration
}

// Option mutates a RegisterHandlerConfig.
type Option func(*RegisterHandlerConfig) error

// WithACKDeadline configures the deadline for the message broker subscription.
func WithACKDeadline(deadline time.Duration) Option {
	return func(c *RegisterHandlerConfig) error {
		if deadline <= 0 {
			return fmt.Errorf("ack deadline %v must be positive", deadline)
		}
		c.AckDeadline = deadline
		return nil
	}
}

// ApplyRegisterHandlerOptions returns the config resulting from applying
// opts over the defaults.
func ApplyRegisterHandlerOptions(opts ...Option) (RegisterHandlerConfig, error) {
	config := DefaultRegisterHandlerConfig
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return RegisterHandlerConfig{}, err
		}
	}
	return config, nil
}
