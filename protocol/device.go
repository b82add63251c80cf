package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Device message type tags inside a DeviceNotification payload.
const (
	deviceBattery        byte = 0x00
	deviceIMU            byte = 0x01
	deviceMatrixDisplay  byte = 0x02
	deviceMotor          byte = 0x0A
	deviceForceSensor    byte = 0x0B
	deviceColorSensor    byte = 0x0C
	deviceDistanceSensor byte = 0x0D
	deviceColorMatrix    byte = 0x0E
)

// DeviceMessage is one reading inside a DeviceNotification.
type DeviceMessage interface {
	deviceMessage()
}

// DeviceNotification is a periodic snapshot of hub and peripheral state,
// sent while device notifications are enabled.
type DeviceNotification struct {
	Messages []DeviceMessage
}

func (*DeviceNotification) Opcode() Opcode { return OpDeviceNotification }

// BatteryStatus is the hub battery level in percent.
type BatteryStatus struct {
	Percent uint8
}

// IMUReading is the hub's orientation and inertial state.
type IMUReading struct {
	UpFace  HubFace
	YawFace HubFace
	Yaw     int16
	Pitch   int16
	Roll    int16
	AccelX  int16
	AccelY  int16
	AccelZ  int16
	GyroX   int16
	GyroY   int16
	GyroZ   int16
}

// MatrixDisplay is the brightness of each pixel of the hub's 5x5 display.
type MatrixDisplay struct {
	Pixels [25]uint8
}

// MotorReading is the state of a motor attached to a port.
type MotorReading struct {
	Port             Port
	Type             MotorType
	AbsolutePosition int16
	Power            int16
	Speed            int8
	Position         int32
}

// ForceSensorReading is the state of a force sensor attached to a port.
type ForceSensorReading struct {
	Port    Port
	Value   uint8
	Pressed bool
}

// ColorSensorReading is the state of a color sensor attached to a port.
// Detected is false when the sensor does not recognize a color; Color is
// meaningless in that case.
type ColorSensorReading struct {
	Port     Port
	Detected bool
	Color    Color
	Red      uint16
	Green    uint16
	Blue     uint16
}

// DistanceSensorReading is the state of a distance sensor attached to a
// port. Distance is -1 when nothing is in range.
type DistanceSensorReading struct {
	Port     Port
	Distance int16
}

// ColorMatrixReading is the state of a 3x3 color matrix attached to a port.
type ColorMatrixReading struct {
	Port   Port
	Pixels [9]uint8
}

func (*BatteryStatus) deviceMessage()         {}
func (*IMUReading) deviceMessage()            {}
func (*MatrixDisplay) deviceMessage()         {}
func (*MotorReading) deviceMessage()          {}
func (*ForceSensorReading) deviceMessage()    {}
func (*ColorSensorReading) deviceMessage()    {}
func (*DistanceSensorReading) deviceMessage() {}
func (*ColorMatrixReading) deviceMessage()    {}

func decodeDeviceNotification(body []byte) (*DeviceNotification, error) {
	if len(body) < 2 {
		return nil, &TruncatedMessageError{What: "DeviceNotification"}
	}
	size := int(binary.LittleEndian.Uint16(body[:2]))
	if len(body) < 2+size {
		return nil, &TruncatedMessageError{What: "DeviceNotification payload"}
	}

	r := bytes.NewReader(body[2 : 2+size])
	n := &DeviceNotification{}
	for r.Len() > 0 {
		msg, err := decodeDeviceMessage(r)
		if err != nil {
			return nil, err
		}
		n.Messages = append(n.Messages, msg)
	}
	return n, nil
}

func decodeDeviceMessage(r *bytes.Reader) (DeviceMessage, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, &TruncatedMessageError{What: "device message tag"}
	}

	switch tag {
	case deviceBattery:
		var raw struct{ Percent uint8 }
		if err := readDeviceFields(r, &raw, "BatteryStatus"); err != nil {
			return nil, err
		}
		return &BatteryStatus{Percent: raw.Percent}, nil

	case deviceIMU:
		var raw struct {
			UpFace  uint8
			YawFace uint8
			Yaw     int16
			Pitch   int16
			Roll    int16
			AccelX  int16
			AccelY  int16
			AccelZ  int16
			GyroX   int16
			GyroY   int16
			GyroZ   int16
		}
		if err := readDeviceFields(r, &raw, "IMUReading"); err != nil {
			return nil, err
		}
		upFace, err := parseHubFace(raw.UpFace)
		if err != nil {
			return nil, err
		}
		yawFace, err := parseHubFace(raw.YawFace)
		if err != nil {
			return nil, err
		}
		return &IMUReading{
			UpFace: upFace, YawFace: yawFace,
			Yaw: raw.Yaw, Pitch: raw.Pitch, Roll: raw.Roll,
			AccelX: raw.AccelX, AccelY: raw.AccelY, AccelZ: raw.AccelZ,
			GyroX: raw.GyroX, GyroY: raw.GyroY, GyroZ: raw.GyroZ,
		}, nil

	case deviceMatrixDisplay:
		msg := &MatrixDisplay{}
		if _, err := io.ReadFull(r, msg.Pixels[:]); err != nil {
			return nil, &TruncatedMessageError{What: "MatrixDisplay"}
		}
		return msg, nil

	case deviceMotor:
		var raw struct {
			Port             uint8
			Type             uint8
			AbsolutePosition int16
			Power            int16
			Speed            int8
			Position         int32
		}
		if err := readDeviceFields(r, &raw, "MotorReading"); err != nil {
			return nil, err
		}
		port, err := parsePort(raw.Port)
		if err != nil {
			return nil, err
		}
		motorType, err := parseMotorType(raw.Type)
		if err != nil {
			return nil, err
		}
		return &MotorReading{
			Port: port, Type: motorType,
			AbsolutePosition: raw.AbsolutePosition,
			Power:            raw.Power,
			Speed:            raw.Speed,
			Position:         raw.Position,
		}, nil

	case deviceForceSensor:
		var raw struct {
			Port    uint8
			Value   uint8
			Pressed uint8
		}
		if err := readDeviceFields(r, &raw, "ForceSensorReading"); err != nil {
			return nil, err
		}
		port, err := parsePort(raw.Port)
		if err != nil {
			return nil, err
		}
		if raw.Pressed > 1 {
			return nil, &InvalidEnumError{Enum: "bool", Value: raw.Pressed}
		}
		return &ForceSensorReading{Port: port, Value: raw.Value, Pressed: raw.Pressed == 1}, nil

	case deviceColorSensor:
		var raw struct {
			Port  uint8
			Color uint8
			Red   uint16
			Green uint16
			Blue  uint16
		}
		if err := readDeviceFields(r, &raw, "ColorSensorReading"); err != nil {
			return nil, err
		}
		port, err := parsePort(raw.Port)
		if err != nil {
			return nil, err
		}
		msg := &ColorSensorReading{Port: port, Red: raw.Red, Green: raw.Green, Blue: raw.Blue}
		// Out-of-range color means "nothing detected", not a protocol error.
		if _, ok := colorNames[Color(raw.Color)]; ok {
			msg.Detected = true
			msg.Color = Color(raw.Color)
		}
		return msg, nil

	case deviceDistanceSensor:
		var raw struct {
			Port     uint8
			Distance int16
		}
		if err := readDeviceFields(r, &raw, "DistanceSensorReading"); err != nil {
			return nil, err
		}
		port, err := parsePort(raw.Port)
		if err != nil {
			return nil, err
		}
		return &DistanceSensorReading{Port: port, Distance: raw.Distance}, nil

	case deviceColorMatrix:
		portByte, err := r.ReadByte()
		if err != nil {
			return nil, &TruncatedMessageError{What: "ColorMatrixReading"}
		}
		port, err := parsePort(portByte)
		if err != nil {
			return nil, err
		}
		msg := &ColorMatrixReading{Port: port}
		if _, err := io.ReadFull(r, msg.Pixels[:]); err != nil {
			return nil, &TruncatedMessageError{What: "ColorMatrixReading"}
		}
		return msg, nil

	default:
		return nil, &UnknownMessageError{Opcode: tag}
	}
}

func readDeviceFields(r *bytes.Reader, dst any, what string) error {
	if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
		return &TruncatedMessageError{What: what}
	}
	return nil
}
