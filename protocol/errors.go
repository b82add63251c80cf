package protocol

import "fmt"

// UnknownMessageError reports a message opcode that is not part of the hub
// protocol.
type UnknownMessageError struct {
	Opcode byte
}

func (e *UnknownMessageError) Error() string {
	return fmt.Sprintf("unknown message opcode 0x%02x", e.Opcode)
}

// TruncatedMessageError reports a message that ended before a required field.
type TruncatedMessageError struct {
	What string
}

func (e *TruncatedMessageError) Error() string {
	return fmt.Sprintf("message truncated: %s", e.What)
}

// InvalidEnumError reports an enumeration field holding a value outside its
// defined range.
type InvalidEnumError struct {
	Enum  string
	Value byte
}

func (e *InvalidEnumError) Error() string {
	return fmt.Sprintf("invalid value 0x%02x for enum %s", e.Value, e.Enum)
}
