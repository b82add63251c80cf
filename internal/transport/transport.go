// Package transport provides the GATT link to a SPIKE Prime hub: it dials
// the peripheral, locates the hub's service and characteristics, and exposes
// raw packet writes and notification callbacks. Framing and message
// semantics live above it.
package transport

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
)

// GATT identifiers of the hub service. The hub advertises the 16-bit form
// of the service UUID; the characteristics only appear after discovery.
const (
	ServiceUUID = "0000fd02-0000-1000-8000-00805f9b34fb"

	// RxCharUUID is the characteristic the host writes to.
	RxCharUUID = "0000fd02-0001-1000-8000-00805f9b34fb"

	// TxCharUUID is the characteristic the hub notifies on.
	TxCharUUID = "0000fd02-0002-1000-8000-00805f9b34fb"
)

// DefaultConnectTimeout bounds Dial when the caller's context has no
// deadline of its own.
const DefaultConnectTimeout = 30 * time.Second

// DeviceFactory creates ble.Device instances (can be overridden in tests).
var DeviceFactory = newDevice

// Transport is a raw bidirectional packet link to a hub.
type Transport interface {
	// WritePacket sends one packet to the hub. Packets must already be
	// framed and no larger than the hub's advertised packet size.
	WritePacket(data []byte) error

	// Subscribe registers the handler for incoming notification packets.
	// The data slice is only valid for the duration of the call; handlers
	// must copy it if they retain it.
	Subscribe(handler func(data []byte)) error

	// Close tears down the link. It is safe to call more than once.
	Close() error
}

// normalizeUUID converts a UUID string to the BLE library format (lowercase,
// no dashes). Handles both the dashed 128-bit form and the short 16-bit form.
func normalizeUUID(uuid string) string {
	return strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
}

// MatchesService reports whether any of the advertised service UUIDs is the
// hub service, in either its 16-bit or 128-bit form.
func MatchesService(uuids []string) bool {
	long := normalizeUUID(ServiceUUID)
	short := long[4:8] // "fd02"
	for _, u := range uuids {
		n := normalizeUUID(u)
		if n == long || n == short {
			return true
		}
	}
	return false
}

// gattTransport is the production Transport over go-ble.
type gattTransport struct {
	client ble.Client
	rx     *ble.Characteristic
	tx     *ble.Characteristic
	logger *logrus.Logger

	writeMutex sync.Mutex
	connMutex  sync.RWMutex
	closed     bool
}

// Dial connects to the hub at the given address, discovers its GATT profile
// and resolves the service characteristics. The returned transport is ready
// for Subscribe and WritePacket.
func Dial(ctx context.Context, address string, logger *logrus.Logger) (Transport, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if strings.TrimSpace(address) == "" {
		return nil, &ConnectError{Address: address, Reason: "address is not set"}
	}

	logger.WithField("address", address).Info("Connecting to hub...")

	dev, err := DeviceFactory()
	if err != nil {
		return nil, NormalizeError(err)
	}
	ble.SetDefaultDevice(dev)

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultConnectTimeout)
		defer cancel()
	}

	client, err := ble.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		return nil, NormalizeError(&ConnectError{Address: address, Reason: err.Error()})
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		client.CancelConnection()
		return nil, NormalizeError(err)
	}

	t := &gattTransport{client: client, logger: logger}
	for _, svc := range profile.Services {
		if normalizeUUID(svc.UUID.String()) != normalizeUUID(ServiceUUID) {
			continue
		}
		for _, char := range svc.Characteristics {
			switch normalizeUUID(char.UUID.String()) {
			case normalizeUUID(RxCharUUID):
				t.rx = char
			case normalizeUUID(TxCharUUID):
				t.tx = char
			}
		}
	}
	if t.rx == nil || t.tx == nil {
		client.CancelConnection()
		return nil, &NotFoundError{Resource: "hub service", UUIDs: []string{ServiceUUID}}
	}

	logger.WithFields(logrus.Fields{
		"address":  address,
		"services": len(profile.Services),
	}).Info("Hub connected")
	return t, nil
}

func (t *gattTransport) WritePacket(data []byte) error {
	t.connMutex.RLock()
	if t.closed {
		t.connMutex.RUnlock()
		return ErrNotConnected
	}
	client, rx := t.client, t.rx
	t.connMutex.RUnlock()

	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	// The hub expects write-without-response on its RX characteristic.
	if err := client.WriteCharacteristic(rx, data, true); err != nil {
		return NormalizeError(err)
	}
	return nil
}

func (t *gattTransport) Subscribe(handler func(data []byte)) error {
	t.connMutex.RLock()
	defer t.connMutex.RUnlock()
	if t.closed {
		return ErrNotConnected
	}

	if err := t.client.Subscribe(t.tx, false, handler); err != nil {
		return NormalizeError(err)
	}
	t.logger.WithField("char_uuid", TxCharUUID).Debug("Subscribed to hub notifications")
	return nil
}

func (t *gattTransport) Close() error {
	t.connMutex.Lock()
	if t.closed {
		t.connMutex.Unlock()
		return nil
	}
	t.closed = true
	client, tx := t.client, t.tx
	t.connMutex.Unlock()

	// Unsubscribe errors are expected when the peer already dropped the
	// link, so they are logged and not returned.
	if err := client.Unsubscribe(tx, false); err != nil {
		t.logger.WithField("error", err).Debug("Unsubscribe failed during close")
	}

	if err := client.CancelConnection(); err != nil {
		t.logger.WithField("error", err).Warn("Hub disconnected with errors")
		return NormalizeError(err)
	}
	t.logger.Info("Hub disconnected")
	return nil
}
