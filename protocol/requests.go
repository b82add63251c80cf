package protocol

import "encoding/binary"

const (
	// MaxFileNameLen is the longest file name accepted by StartFileUpload,
	// NUL terminator excluded.
	MaxFileNameLen = 31

	// MaxHubNameLen is the longest hub name accepted by SetHubName, NUL
	// terminator excluded.
	MaxHubNameLen = 29
)

// InfoRequest asks the hub for its versions and transfer limits. Sent once
// as the first message of every connection.
type InfoRequest struct{}

func (InfoRequest) Encode() []byte { return []byte{byte(OpInfoRequest)} }

// GetHubNameRequest asks the hub for its advertised name.
type GetHubNameRequest struct{}

func (GetHubNameRequest) Encode() []byte { return []byte{byte(OpGetHubNameRequest)} }

// DeviceUUIDRequest asks the hub for its unique device identifier.
type DeviceUUIDRequest struct{}

func (DeviceUUIDRequest) Encode() []byte { return []byte{byte(OpDeviceUUIDRequest)} }

// StartFirmwareUploadRequest announces a firmware image transfer.
type StartFirmwareUploadRequest struct {
	FileSHA [20]byte
	CRC32   uint32
}

func (r StartFirmwareUploadRequest) Encode() []byte {
	buf := make([]byte, 0, 25)
	buf = append(buf, byte(OpStartFirmwareUploadRequest))
	buf = append(buf, r.FileSHA[:]...)
	return binary.LittleEndian.AppendUint32(buf, r.CRC32)
}

// BeginFirmwareUpdateRequest commits a previously uploaded firmware image.
type BeginFirmwareUpdateRequest struct {
	FileSHA [20]byte
	CRC32   uint32
}

func (r BeginFirmwareUpdateRequest) Encode() []byte {
	buf := make([]byte, 0, 25)
	buf = append(buf, byte(OpBeginFirmwareUpdateRequest))
	buf = append(buf, r.FileSHA[:]...)
	return binary.LittleEndian.AppendUint32(buf, r.CRC32)
}

// StartFileUploadRequest announces a program file transfer into a slot.
// CRC32 covers the whole file, zero-padded to a 4-byte boundary.
type StartFileUploadRequest struct {
	FileName string
	Slot     uint8
	CRC32    uint32
}

func (r StartFileUploadRequest) Encode() []byte {
	name := r.FileName
	if len(name) > MaxFileNameLen {
		name = name[:MaxFileNameLen]
	}
	buf := make([]byte, 0, len(name)+7)
	buf = append(buf, byte(OpStartFileUploadRequest))
	buf = append(buf, name...)
	buf = append(buf, 0x00)
	buf = append(buf, r.Slot)
	return binary.LittleEndian.AppendUint32(buf, r.CRC32)
}

// TransferChunkRequest carries one chunk of an ongoing file transfer. CRC32
// is the running checksum of everything transferred so far.
type TransferChunkRequest struct {
	CRC32   uint32
	Payload []byte
}

func (r TransferChunkRequest) Encode() []byte {
	payload := r.Payload
	if len(payload) > 0xFFFF {
		payload = payload[:0xFFFF]
	}
	buf := make([]byte, 0, len(payload)+7)
	buf = append(buf, byte(OpTransferChunkRequest))
	buf = binary.LittleEndian.AppendUint32(buf, r.CRC32)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(payload)))
	return append(buf, payload...)
}

// SetHubNameRequest renames the hub.
type SetHubNameRequest struct {
	Name string
}

func (r SetHubNameRequest) Encode() []byte {
	name := r.Name
	if len(name) > MaxHubNameLen {
		name = name[:MaxHubNameLen]
	}
	buf := make([]byte, 0, len(name)+2)
	buf = append(buf, byte(OpSetHubNameRequest))
	buf = append(buf, name...)
	return append(buf, 0x00)
}

// ProgramFlowRequest starts or stops the program stored in a slot.
type ProgramFlowRequest struct {
	Action ProgramAction
	Slot   uint8
}

func (r ProgramFlowRequest) Encode() []byte {
	return []byte{byte(OpProgramFlowRequest), byte(r.Action), r.Slot}
}

// ClearSlotRequest erases the program stored in a slot.
type ClearSlotRequest struct {
	Slot uint8
}

func (r ClearSlotRequest) Encode() []byte {
	return []byte{byte(OpClearSlotRequest), r.Slot}
}

// DeviceNotificationRequest enables periodic device notifications at the
// given interval, or disables them when the interval is zero.
type DeviceNotificationRequest struct {
	IntervalMS uint16
}

func (r DeviceNotificationRequest) Encode() []byte {
	buf := make([]byte, 0, 3)
	buf = append(buf, byte(OpDeviceNotificationRequest))
	return binary.LittleEndian.AppendUint16(buf, r.IntervalMS)
}
