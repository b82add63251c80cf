package transport

import (
	"fmt"
	"strings"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

func newDevice() (ble.Device, error) {
	dev, err := darwin.NewDevice()
	if err != nil {
		// Wrap CoreBluetooth state errors with clearer messages
		if strings.Contains(err.Error(), "central manager has invalid state") {
			if strings.Contains(err.Error(), "have=4") { // StatePoweredOff
				return nil, fmt.Errorf("%w: enable Bluetooth and retry", ErrBluetoothOff)
			}
			return nil, fmt.Errorf("Bluetooth is not ready: %w", err)
		}
		return nil, err
	}
	return dev, nil
}
