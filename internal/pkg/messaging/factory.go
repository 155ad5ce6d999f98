package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DriverNATS selects the NATS backend.
const DriverNATS = "nats"

// ErrUnknownDriver indicates an unsupported messaging driver.
var ErrUnknownDriver = errors.New("messaging: unknown driver")

// FactoryOptions groups config for supported messaging backends.
type FactoryOptions struct {
	// NATS provides configuration for the NATS driver.
	NATS NATSConfig
}

// NewFromDriver constructs a Messaging implementation by driver name.
func NewFromDriver(_ context.Context, driver string, opts FactoryOptions) (Messaging, error) {
	switch strings.TrimSpace(driver) {
	case DriverNATS:
		return NewNATS(opts.NATS)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
