package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/spikeprime/hub"
	"github.com/srg/spikeprime/internal/transport"
)

// FormatUserError turns library errors into messages suitable for a
// terminal user, without stack-of-wrapping noise.
func FormatUserError(err error) string {
	var nack *hub.NotAcknowledgedError

	switch {
	case errors.Is(err, transport.ErrBluetoothOff):
		return "Bluetooth is turned off. Enable Bluetooth and try again."
	case errors.Is(err, transport.ErrNotConnected):
		return "The hub disconnected. Check that it is powered on and in range."
	case errors.Is(err, hub.ErrNoHubFound):
		return "No SPIKE Prime hub found. Make sure the hub is on and not connected to another app."
	case errors.Is(err, hub.ErrBadDevice):
		return "The device is not a SPIKE Prime hub."
	case errors.As(err, &nack):
		return fmt.Sprintf("The hub rejected the request (%s). It may be busy running a program.", nack)
	case errors.Is(err, context.DeadlineExceeded):
		return "Timed out waiting for the hub."
	default:
		return err.Error()
	}
}
