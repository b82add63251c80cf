package hub

import (
	"sync"

	"github.com/srg/spikeprime/protocol"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// PortReading pairs a port with the latest reading of the device attached
// to it.
type PortReading struct {
	Port    protocol.Port
	Reading protocol.DeviceMessage
}

// HubState folds a stream of device notifications into the latest known hub
// state. Ports keep the order in which their devices first reported, so a
// live display renders stably.
type HubState struct {
	mu      sync.RWMutex
	battery *protocol.BatteryStatus
	imu     *protocol.IMUReading
	display *protocol.MatrixDisplay
	ports   *orderedmap.OrderedMap[protocol.Port, protocol.DeviceMessage]
}

// NewHubState creates an empty state.
func NewHubState() *HubState {
	return &HubState{
		ports: orderedmap.New[protocol.Port, protocol.DeviceMessage](),
	}
}

// Apply folds one notification into the state.
func (s *HubState) Apply(n *protocol.DeviceNotification) {
	if n == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range n.Messages {
		switch m := msg.(type) {
		case *protocol.BatteryStatus:
			s.battery = m
		case *protocol.IMUReading:
			s.imu = m
		case *protocol.MatrixDisplay:
			s.display = m
		case *protocol.MotorReading:
			s.ports.Set(m.Port, m)
		case *protocol.ForceSensorReading:
			s.ports.Set(m.Port, m)
		case *protocol.ColorSensorReading:
			s.ports.Set(m.Port, m)
		case *protocol.DistanceSensorReading:
			s.ports.Set(m.Port, m)
		case *protocol.ColorMatrixReading:
			s.ports.Set(m.Port, m)
		}
	}
}

// Battery returns the latest battery reading, or nil.
func (s *HubState) Battery() *protocol.BatteryStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.battery
}

// IMU returns the latest orientation reading, or nil.
func (s *HubState) IMU() *protocol.IMUReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.imu
}

// Display returns the latest 5x5 display snapshot, or nil.
func (s *HubState) Display() *protocol.MatrixDisplay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.display
}

// Ports returns the latest reading per port, in first-reported order.
func (s *HubState) Ports() []PortReading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	readings := make([]PortReading, 0, s.ports.Len())
	for pair := s.ports.Oldest(); pair != nil; pair = pair.Next() {
		readings = append(readings, PortReading{Port: pair.Key, Reading: pair.Value})
	}
	return readings
}
