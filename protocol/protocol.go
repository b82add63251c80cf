// Package protocol implements the SPIKE Prime hub message protocol: typed
// request and response messages, their binary encoding (one opcode byte
// followed by little-endian fields), and the CRC-32 checksums used by the
// file transfer operations.
//
// The package is transport-agnostic. Framing for the BLE link lives in
// internal/frame; connection management lives in the hub package.
package protocol

// Opcode identifies a message type on the wire.
type Opcode byte

const (
	OpInfoRequest                 Opcode = 0x00
	OpInfoResponse                Opcode = 0x01
	OpStartFirmwareUploadRequest  Opcode = 0x0A
	OpStartFirmwareUploadResponse Opcode = 0x0B
	OpStartFileUploadRequest      Opcode = 0x0C
	OpStartFileUploadResponse     Opcode = 0x0D
	OpTransferChunkRequest        Opcode = 0x10
	OpTransferChunkResponse       Opcode = 0x11
	OpBeginFirmwareUpdateRequest  Opcode = 0x14
	OpBeginFirmwareUpdateResponse Opcode = 0x15
	OpSetHubNameRequest           Opcode = 0x16
	OpSetHubNameResponse          Opcode = 0x17
	OpGetHubNameRequest           Opcode = 0x18
	OpGetHubNameResponse          Opcode = 0x19
	OpDeviceUUIDRequest           Opcode = 0x1A
	OpDeviceUUIDResponse          Opcode = 0x1B
	OpProgramFlowRequest          Opcode = 0x1E
	OpProgramFlowResponse         Opcode = 0x1F
	OpProgramFlowNotification     Opcode = 0x20
	OpConsoleNotification         Opcode = 0x21
	OpDeviceNotificationRequest   Opcode = 0x28
	OpDeviceNotificationResponse  Opcode = 0x29
	OpTunnelMessage               Opcode = 0x32
	OpDeviceNotification          Opcode = 0x3C
	OpClearSlotRequest            Opcode = 0x46
	OpClearSlotResponse           Opcode = 0x47
)

// Request is a message sent to the hub.
type Request interface {
	// Encode serializes the message, opcode byte included.
	Encode() []byte
}

// Response is a message received from the hub.
type Response interface {
	// Opcode returns the wire opcode of the message.
	Opcode() Opcode
}

// AckResponse is implemented by responses that carry an acknowledgement
// status byte.
type AckResponse interface {
	Response
	AckStatus() ResponseStatus
}

// Decode parses a single payload (as produced by the framing layer) into a
// typed Response. Unrecognized opcodes yield an UnknownMessageError.
func Decode(data []byte) (Response, error) {
	if len(data) == 0 {
		return nil, &TruncatedMessageError{What: "message opcode"}
	}

	op, body := Opcode(data[0]), data[1:]
	switch op {
	case OpInfoResponse:
		return decodeInfoResponse(body)
	case OpStartFirmwareUploadResponse:
		return decodeStartFirmwareUploadResponse(body)
	case OpStartFileUploadResponse:
		return decodeAckResponse(body, "StartFileUploadResponse", func(s ResponseStatus) Response {
			return &StartFileUploadResponse{Status: s}
		})
	case OpTransferChunkResponse:
		return decodeAckResponse(body, "TransferChunkResponse", func(s ResponseStatus) Response {
			return &TransferChunkResponse{Status: s}
		})
	case OpBeginFirmwareUpdateResponse:
		return decodeAckResponse(body, "BeginFirmwareUpdateResponse", func(s ResponseStatus) Response {
			return &BeginFirmwareUpdateResponse{Status: s}
		})
	case OpSetHubNameResponse:
		return decodeAckResponse(body, "SetHubNameResponse", func(s ResponseStatus) Response {
			return &SetHubNameResponse{Status: s}
		})
	case OpGetHubNameResponse:
		return decodeGetHubNameResponse(body)
	case OpDeviceUUIDResponse:
		return decodeDeviceUUIDResponse(body)
	case OpProgramFlowResponse:
		return decodeAckResponse(body, "ProgramFlowResponse", func(s ResponseStatus) Response {
			return &ProgramFlowResponse{Status: s}
		})
	case OpProgramFlowNotification:
		return decodeProgramFlowNotification(body)
	case OpConsoleNotification:
		return decodeConsoleNotification(body)
	case OpDeviceNotificationResponse:
		return decodeAckResponse(body, "DeviceNotificationResponse", func(s ResponseStatus) Response {
			return &DeviceNotificationResponse{Status: s}
		})
	case OpDeviceNotification:
		return decodeDeviceNotification(body)
	case OpTunnelMessage:
		return decodeTunnelMessage(body)
	case OpClearSlotResponse:
		return decodeAckResponse(body, "ClearSlotResponse", func(s ResponseStatus) Response {
			return &ClearSlotResponse{Status: s}
		})
	default:
		return nil, &UnknownMessageError{Opcode: byte(op)}
	}
}

// decodeAckResponse parses a response that consists of a single
// acknowledgement byte.
func decodeAckResponse(body []byte, what string, build func(ResponseStatus) Response) (Response, error) {
	s, err := decodeStatus(body, what)
	if err != nil {
		return nil, err
	}
	return build(s), nil
}
