package protocol_test

import (
	"encoding/binary"
	"testing"

	"github.com/srg/spikeprime/protocol"
	"github.com/stretchr/testify/suite"
)

type DeviceNotificationTestSuite struct {
	suite.Suite
}

// notification wraps device message bodies in the 0x3C envelope with its
// little-endian payload size prefix.
func notification(messages ...[]byte) []byte {
	var payload []byte
	for _, m := range messages {
		payload = append(payload, m...)
	}
	data := []byte{0x3C}
	data = binary.LittleEndian.AppendUint16(data, uint16(len(payload)))
	return append(data, payload...)
}

func (suite *DeviceNotificationTestSuite) decode(data []byte) *protocol.DeviceNotification {
	msg, err := protocol.Decode(data)
	suite.Require().NoError(err)
	n, ok := msg.(*protocol.DeviceNotification)
	suite.Require().True(ok, "decoded message MUST be a DeviceNotification")
	return n
}

func (suite *DeviceNotificationTestSuite) TestBatteryAndMotor() {
	// GOAL: Verify a notification carrying several device messages decodes
	// them in order with little-endian fields and mapped enums.

	motor := []byte{
		0x0A,                   // motor tag
		0x02,                   // port C
		0x30,                   // medium motor
		0x2C, 0x01,             // absolute position = 300
		0xF6, 0xFF,             // power = -10
		0x32,                   // speed = 50
		0x10, 0x27, 0x00, 0x00, // position = 10000
	}
	n := suite.decode(notification([]byte{0x00, 0x55}, motor))
	suite.Require().Len(n.Messages, 2)

	suite.Equal(&protocol.BatteryStatus{Percent: 85}, n.Messages[0])
	suite.Equal(&protocol.MotorReading{
		Port:             protocol.PortC,
		Type:             protocol.MotorMedium,
		AbsolutePosition: 300,
		Power:            -10,
		Speed:            50,
		Position:         10000,
	}, n.Messages[1])
}

func (suite *DeviceNotificationTestSuite) TestIMU() {
	imu := []byte{
		0x01,                               // imu tag
		0x00, 0x02,                         // up face top, yaw face right
		0x0A, 0x00,                         // yaw = 10
		0xF0, 0xFF,                         // pitch = -16
		0x00, 0x00,                         // roll
		0x01, 0x00, 0x02, 0x00, 0x03, 0x00, // accel x y z
		0x04, 0x00, 0x05, 0x00, 0x06, 0x00, // gyro x y z
	}
	n := suite.decode(notification(imu))
	suite.Require().Len(n.Messages, 1)

	suite.Equal(&protocol.IMUReading{
		UpFace: protocol.FaceTop, YawFace: protocol.FaceRight,
		Yaw: 10, Pitch: -16, Roll: 0,
		AccelX: 1, AccelY: 2, AccelZ: 3,
		GyroX: 4, GyroY: 5, GyroZ: 6,
	}, n.Messages[0])
}

func (suite *DeviceNotificationTestSuite) TestSensors() {
	force := []byte{0x0B, 0x00, 0x64, 0x01}
	distance := []byte{0x0D, 0x01, 0xFF, 0xFF}
	color := []byte{0x0C, 0x03, 0x09, 0x00, 0x04, 0x10, 0x00, 0x20, 0x00}
	n := suite.decode(notification(force, distance, color))
	suite.Require().Len(n.Messages, 3)

	suite.Equal(&protocol.ForceSensorReading{Port: protocol.PortA, Value: 100, Pressed: true}, n.Messages[0])
	suite.Equal(&protocol.DistanceSensorReading{Port: protocol.PortB, Distance: -1}, n.Messages[1])
	suite.Equal(&protocol.ColorSensorReading{
		Port: protocol.PortD, Detected: true, Color: protocol.ColorRed,
		Red: 0x0400, Green: 0x0010, Blue: 0x0020,
	}, n.Messages[2])
}

func (suite *DeviceNotificationTestSuite) TestColorNotDetected() {
	// An out-of-range color byte means no color was recognized, not a
	// malformed message.
	color := []byte{0x0C, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	n := suite.decode(notification(color))
	suite.Require().Len(n.Messages, 1)

	reading, ok := n.Messages[0].(*protocol.ColorSensorReading)
	suite.Require().True(ok)
	suite.False(reading.Detected)
}

func (suite *DeviceNotificationTestSuite) TestMatrices() {
	display := make([]byte, 26)
	display[0] = 0x02
	for i := 0; i < 25; i++ {
		display[1+i] = byte(i * 4)
	}
	colorMatrix := make([]byte, 11)
	colorMatrix[0] = 0x0E
	colorMatrix[1] = 0x05 // port F
	for i := 0; i < 9; i++ {
		colorMatrix[2+i] = byte(i)
	}
	n := suite.decode(notification(display, colorMatrix))
	suite.Require().Len(n.Messages, 2)

	dsp, ok := n.Messages[0].(*protocol.MatrixDisplay)
	suite.Require().True(ok)
	suite.Equal(uint8(96), dsp.Pixels[24])

	matrix, ok := n.Messages[1].(*protocol.ColorMatrixReading)
	suite.Require().True(ok)
	suite.Equal(protocol.PortF, matrix.Port)
	suite.Equal(uint8(8), matrix.Pixels[8])
}

func (suite *DeviceNotificationTestSuite) TestDecodeErrors() {
	tests := []struct {
		name string
		data []byte
	}{
		{"missing size prefix", []byte{0x3C, 0x05}},
		{"payload shorter than size", []byte{0x3C, 0x04, 0x00, 0x00, 0x55}},
		{"truncated reading", notification([]byte{0x0A, 0x02, 0x30})},
		{"unknown device tag", notification([]byte{0x77})},
		{"bad port", notification([]byte{0x0B, 0x09, 0x64, 0x01})},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			_, err := protocol.Decode(tt.data)
			suite.Error(err)
		})
	}
}

func TestDeviceNotificationTestSuite(t *testing.T) {
	suite.Run(t, new(DeviceNotificationTestSuite))
}
