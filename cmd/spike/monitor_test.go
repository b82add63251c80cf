package main

import (
	"bytes"
	"testing"

	"github.com/srg/spikeprime/hub"
	"github.com/srg/spikeprime/internal/testutils"
	"github.com/srg/spikeprime/protocol"
	"github.com/stretchr/testify/require"
)

func TestRenderStateDashboard(t *testing.T) {
	// GOAL: Verify the monitor dashboard layout for a hub with a motor
	// and a color sensor attached

	state := hub.NewHubState()
	state.Apply(&protocol.DeviceNotification{Messages: []protocol.DeviceMessage{
		&protocol.BatteryStatus{Percent: 87},
		&protocol.IMUReading{UpFace: protocol.FaceTop, YawFace: protocol.FaceFront, Yaw: 10, Pitch: -2, Roll: 3},
		&protocol.MotorReading{Port: protocol.PortA, Type: protocol.MotorLarge, Speed: 20, Power: 100, Position: 360},
		&protocol.ColorSensorReading{Port: protocol.PortB, Detected: true, Color: protocol.ColorBlue, Red: 1, Green: 2, Blue: 3},
	}})

	var out bytes.Buffer
	require.NoError(t, renderState(&out, state))

	testutils.NewTextAsserter(t).Assert(out.String(), `
Battery:      87%
Orientation:  top up, yaw 10 pitch -2 roll 3

PORT  DEVICE  READING
----------------------------------------
A  large motor   speed 20, power 100, position 360
B  color sensor  blue (r=1 g=2 b=3)
`)
}

func TestRenderStateEmpty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, renderState(&out, hub.NewHubState()))

	testutils.NewTextAsserter(t).Assert(out.String(), `
Battery:      -
Orientation:  -

PORT  DEVICE  READING
----------------------------------------
`)
}

func TestDescribeReadingEdgeCases(t *testing.T) {
	kind, reading := describeReading(&protocol.ColorSensorReading{Port: protocol.PortC})
	require.Equal(t, "color sensor", kind)
	require.Equal(t, "no color", reading)

	kind, reading = describeReading(&protocol.DistanceSensorReading{Port: protocol.PortD, Distance: -1})
	require.Equal(t, "distance sensor", kind)
	require.Equal(t, "out of range", reading)
}
