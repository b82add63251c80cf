package protocol

// ResponseStatus is the acknowledgement byte carried by most responses.
type ResponseStatus byte

const (
	Acknowledged    ResponseStatus = 0x00
	NotAcknowledged ResponseStatus = 0x01
)

func (s ResponseStatus) String() string {
	switch s {
	case Acknowledged:
		return "ack"
	case NotAcknowledged:
		return "nack"
	default:
		return "unknown"
	}
}

func parseResponseStatus(b byte) (ResponseStatus, error) {
	switch b {
	case 0x00, 0x01:
		return ResponseStatus(b), nil
	default:
		return 0, &InvalidEnumError{Enum: "ResponseStatus", Value: b}
	}
}

// ProgramAction selects between starting and stopping a stored program.
type ProgramAction byte

const (
	ProgramStart ProgramAction = 0x00
	ProgramStop  ProgramAction = 0x01
)

func (a ProgramAction) String() string {
	switch a {
	case ProgramStart:
		return "start"
	case ProgramStop:
		return "stop"
	default:
		return "unknown"
	}
}

func parseProgramAction(b byte) (ProgramAction, error) {
	switch b {
	case 0x00, 0x01:
		return ProgramAction(b), nil
	default:
		return 0, &InvalidEnumError{Enum: "ProgramAction", Value: b}
	}
}

// HubFace identifies one of the six faces of the hub housing.
type HubFace byte

const (
	FaceTop    HubFace = 0x00
	FaceFront  HubFace = 0x01
	FaceRight  HubFace = 0x02
	FaceBottom HubFace = 0x03
	FaceBack   HubFace = 0x04
	FaceLeft   HubFace = 0x05
)

var hubFaceNames = map[HubFace]string{
	FaceTop:    "top",
	FaceFront:  "front",
	FaceRight:  "right",
	FaceBottom: "bottom",
	FaceBack:   "back",
	FaceLeft:   "left",
}

func (f HubFace) String() string {
	if name, ok := hubFaceNames[f]; ok {
		return name
	}
	return "unknown"
}

func parseHubFace(b byte) (HubFace, error) {
	if b > byte(FaceLeft) {
		return 0, &InvalidEnumError{Enum: "HubFace", Value: b}
	}
	return HubFace(b), nil
}

// Port identifies one of the six external device ports on the hub.
type Port byte

const (
	PortA Port = 0x00
	PortB Port = 0x01
	PortC Port = 0x02
	PortD Port = 0x03
	PortE Port = 0x04
	PortF Port = 0x05
)

func (p Port) String() string {
	if p > PortF {
		return "?"
	}
	return string(rune('A' + int(p)))
}

func parsePort(b byte) (Port, error) {
	if b > byte(PortF) {
		return 0, &InvalidEnumError{Enum: "Port", Value: b}
	}
	return Port(b), nil
}

// MotorType identifies the kind of motor attached to a port.
type MotorType byte

const (
	MotorMedium MotorType = 0x30
	MotorLarge  MotorType = 0x31
	MotorSmall  MotorType = 0x41
)

func (m MotorType) String() string {
	switch m {
	case MotorMedium:
		return "medium"
	case MotorLarge:
		return "large"
	case MotorSmall:
		return "small"
	default:
		return "unknown"
	}
}

func parseMotorType(b byte) (MotorType, error) {
	switch MotorType(b) {
	case MotorMedium, MotorLarge, MotorSmall:
		return MotorType(b), nil
	default:
		return 0, &InvalidEnumError{Enum: "MotorType", Value: b}
	}
}

// Color is a color as classified by the color sensor.
type Color byte

const (
	ColorBlack     Color = 0x00
	ColorMagenta   Color = 0x01
	ColorPurple    Color = 0x02
	ColorBlue      Color = 0x03
	ColorAzure     Color = 0x04
	ColorTurquoise Color = 0x05
	ColorGreen     Color = 0x06
	ColorYellow    Color = 0x07
	ColorOrange    Color = 0x08
	ColorRed       Color = 0x09
	ColorWhite     Color = 0x0A
)

var colorNames = map[Color]string{
	ColorBlack:     "black",
	ColorMagenta:   "magenta",
	ColorPurple:    "purple",
	ColorBlue:      "blue",
	ColorAzure:     "azure",
	ColorTurquoise: "turquoise",
	ColorGreen:     "green",
	ColorYellow:    "yellow",
	ColorOrange:    "orange",
	ColorRed:       "red",
	ColorWhite:     "white",
}

func (c Color) String() string {
	if name, ok := colorNames[c]; ok {
		return name
	}
	return "unknown"
}
