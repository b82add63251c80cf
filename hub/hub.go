// Package hub discovers SPIKE Prime hubs over BLE and manages live
// connections to them: scanning, the info handshake, typed message exchange,
// program upload and device state aggregation.
package hub

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Hub is a discovered hub. The scanner refreshes name, RSSI and last-seen
// on repeat advertisements, so reads go through the accessors; Connect
// produces the live connection.
type Hub struct {
	mu       sync.RWMutex
	name     string
	address  string
	rssi     int
	lastSeen time.Time
	logger   *logrus.Logger
}

// ByAddress builds a Hub descriptor for a known address, skipping discovery.
func ByAddress(address string, logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.New()
	}
	return &Hub{address: address, logger: logger}
}

// Name returns the advertised local name, or the address when the
// advertisement carried no name.
func (h *Hub) Name() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.name == "" {
		return h.address
	}
	return h.name
}

// Address returns the peripheral address.
func (h *Hub) Address() string { return h.address }

// RSSI returns the signal strength of the last advertisement.
func (h *Hub) RSSI() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rssi
}

// LastSeen returns when the hub last advertised.
func (h *Hub) LastSeen() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastSeen
}

func (h *Hub) refresh(name string, rssi int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rssi = rssi
	h.lastSeen = time.Now()
	if name != "" {
		h.name = name
	}
}

// Connect dials the hub and performs the info handshake. The returned
// connection is ready for use; close it when done.
func (h *Hub) Connect(ctx context.Context) (*Connection, error) {
	return Connect(ctx, h.address, h.logger)
}
