package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Version is a three-part firmware or RPC version.
type Version struct {
	Major uint8
	Minor uint8
	Build uint16
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Build)
}

// InfoResponse carries the hub's versions and transfer limits. The limits
// govern how the connection layer splits outgoing messages and file chunks.
type InfoResponse struct {
	RPC            Version
	Firmware       Version
	MaxPacketSize  uint16
	MaxMessageSize uint16
	MaxChunkSize   uint16
	ProductGroup   uint16
}

func (*InfoResponse) Opcode() Opcode { return OpInfoResponse }

func decodeInfoResponse(body []byte) (*InfoResponse, error) {
	var raw struct {
		RPCMajor       uint8
		RPCMinor       uint8
		RPCBuild       uint16
		FirmwareMajor  uint8
		FirmwareMinor  uint8
		FirmwareBuild  uint16
		MaxPacketSize  uint16
		MaxMessageSize uint16
		MaxChunkSize   uint16
		ProductGroup   uint16
	}
	if err := binary.Read(bytes.NewReader(body), binary.LittleEndian, &raw); err != nil {
		return nil, &TruncatedMessageError{What: "InfoResponse"}
	}
	return &InfoResponse{
		RPC:            Version{Major: raw.RPCMajor, Minor: raw.RPCMinor, Build: raw.RPCBuild},
		Firmware:       Version{Major: raw.FirmwareMajor, Minor: raw.FirmwareMinor, Build: raw.FirmwareBuild},
		MaxPacketSize:  raw.MaxPacketSize,
		MaxMessageSize: raw.MaxMessageSize,
		MaxChunkSize:   raw.MaxChunkSize,
		ProductGroup:   raw.ProductGroup,
	}, nil
}

// decodeStatus parses the single acknowledgement byte shared by most
// responses.
func decodeStatus(body []byte, what string) (ResponseStatus, error) {
	if len(body) < 1 {
		return 0, &TruncatedMessageError{What: what}
	}
	return parseResponseStatus(body[0])
}

// StartFirmwareUploadResponse acknowledges a firmware transfer start and
// reports how many bytes the hub already holds from a previous attempt.
type StartFirmwareUploadResponse struct {
	Status          ResponseStatus
	AlreadyUploaded uint32
}

func (*StartFirmwareUploadResponse) Opcode() Opcode              { return OpStartFirmwareUploadResponse }
func (r *StartFirmwareUploadResponse) AckStatus() ResponseStatus { return r.Status }

func decodeStartFirmwareUploadResponse(body []byte) (*StartFirmwareUploadResponse, error) {
	status, err := decodeStatus(body, "StartFirmwareUploadResponse")
	if err != nil {
		return nil, err
	}
	if len(body) < 5 {
		return nil, &TruncatedMessageError{What: "StartFirmwareUploadResponse"}
	}
	return &StartFirmwareUploadResponse{
		Status:          status,
		AlreadyUploaded: binary.LittleEndian.Uint32(body[1:5]),
	}, nil
}

// StartFileUploadResponse acknowledges a file transfer start.
type StartFileUploadResponse struct {
	Status ResponseStatus
}

func (*StartFileUploadResponse) Opcode() Opcode              { return OpStartFileUploadResponse }
func (r *StartFileUploadResponse) AckStatus() ResponseStatus { return r.Status }

// TransferChunkResponse acknowledges a single transferred chunk.
type TransferChunkResponse struct {
	Status ResponseStatus
}

func (*TransferChunkResponse) Opcode() Opcode              { return OpTransferChunkResponse }
func (r *TransferChunkResponse) AckStatus() ResponseStatus { return r.Status }

// BeginFirmwareUpdateResponse acknowledges a firmware update commit.
type BeginFirmwareUpdateResponse struct {
	Status ResponseStatus
}

func (*BeginFirmwareUpdateResponse) Opcode() Opcode              { return OpBeginFirmwareUpdateResponse }
func (r *BeginFirmwareUpdateResponse) AckStatus() ResponseStatus { return r.Status }

// SetHubNameResponse acknowledges a rename.
type SetHubNameResponse struct {
	Status ResponseStatus
}

func (*SetHubNameResponse) Opcode() Opcode              { return OpSetHubNameResponse }
func (r *SetHubNameResponse) AckStatus() ResponseStatus { return r.Status }

// GetHubNameResponse carries the hub's current name.
type GetHubNameResponse struct {
	Name string
}

func (*GetHubNameResponse) Opcode() Opcode { return OpGetHubNameResponse }

func decodeGetHubNameResponse(body []byte) (*GetHubNameResponse, error) {
	name, err := readCString(body, "GetHubNameResponse")
	if err != nil {
		return nil, err
	}
	return &GetHubNameResponse{Name: name}, nil
}

// DeviceUUIDResponse carries the hub's unique device identifier.
type DeviceUUIDResponse struct {
	UUID uuid.UUID
}

func (*DeviceUUIDResponse) Opcode() Opcode { return OpDeviceUUIDResponse }

func decodeDeviceUUIDResponse(body []byte) (*DeviceUUIDResponse, error) {
	if len(body) < 16 {
		return nil, &TruncatedMessageError{What: "DeviceUUIDResponse"}
	}
	id, err := uuid.FromBytes(body[:16])
	if err != nil {
		return nil, err
	}
	return &DeviceUUIDResponse{UUID: id}, nil
}

// ProgramFlowResponse acknowledges a program start/stop request.
type ProgramFlowResponse struct {
	Status ResponseStatus
}

func (*ProgramFlowResponse) Opcode() Opcode              { return OpProgramFlowResponse }
func (r *ProgramFlowResponse) AckStatus() ResponseStatus { return r.Status }

// ProgramFlowNotification reports a program starting or stopping on its own,
// e.g. a running program terminating.
type ProgramFlowNotification struct {
	Action ProgramAction
}

func (*ProgramFlowNotification) Opcode() Opcode { return OpProgramFlowNotification }

func decodeProgramFlowNotification(body []byte) (*ProgramFlowNotification, error) {
	if len(body) < 1 {
		return nil, &TruncatedMessageError{What: "ProgramFlowNotification"}
	}
	action, err := parseProgramAction(body[0])
	if err != nil {
		return nil, err
	}
	return &ProgramFlowNotification{Action: action}, nil
}

// ConsoleNotification carries text printed by a running program.
type ConsoleNotification struct {
	Text string
}

func (*ConsoleNotification) Opcode() Opcode { return OpConsoleNotification }

func decodeConsoleNotification(body []byte) (*ConsoleNotification, error) {
	text, err := readCString(body, "ConsoleNotification")
	if err != nil {
		return nil, err
	}
	return &ConsoleNotification{Text: text}, nil
}

// DeviceNotificationResponse acknowledges a device notification
// enable/disable request.
type DeviceNotificationResponse struct {
	Status ResponseStatus
}

func (*DeviceNotificationResponse) Opcode() Opcode              { return OpDeviceNotificationResponse }
func (r *DeviceNotificationResponse) AckStatus() ResponseStatus { return r.Status }

// ClearSlotResponse acknowledges a slot erase.
type ClearSlotResponse struct {
	Status ResponseStatus
}

func (*ClearSlotResponse) Opcode() Opcode              { return OpClearSlotResponse }
func (r *ClearSlotResponse) AckStatus() ResponseStatus { return r.Status }

// TunnelMessage is an opaque application payload. It flows in both
// directions: encode it to send data to a program running on the hub,
// and it is decoded when such a program sends data back.
type TunnelMessage struct {
	Payload []byte
}

func (*TunnelMessage) Opcode() Opcode { return OpTunnelMessage }

func (r *TunnelMessage) Encode() []byte {
	payload := r.Payload
	if len(payload) > 0xFFFF {
		payload = payload[:0xFFFF]
	}
	buf := make([]byte, 0, len(payload)+3)
	buf = append(buf, byte(OpTunnelMessage))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(payload)))
	return append(buf, payload...)
}

func decodeTunnelMessage(body []byte) (*TunnelMessage, error) {
	if len(body) < 2 {
		return nil, &TruncatedMessageError{What: "TunnelMessage"}
	}
	size := int(binary.LittleEndian.Uint16(body[:2]))
	if len(body) < 2+size {
		return nil, &TruncatedMessageError{What: "TunnelMessage payload"}
	}
	payload := make([]byte, size)
	copy(payload, body[2:2+size])
	return &TunnelMessage{Payload: payload}, nil
}

// readCString extracts a NUL-terminated string from the start of body.
func readCString(body []byte, what string) (string, error) {
	end := bytes.IndexByte(body, 0x00)
	if end < 0 {
		return "", &TruncatedMessageError{What: what + " string terminator"}
	}
	return string(body[:end]), nil
}
