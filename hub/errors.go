package hub

import (
	"errors"
	"fmt"

	"github.com/srg/spikeprime/protocol"
)

var (
	// ErrBadDevice means the connected peripheral speaks the protocol but
	// is not a SPIKE Prime hub (wrong product group in its info response).
	ErrBadDevice = errors.New("connected device is not a SPIKE Prime hub")

	// ErrNoHubFound means a scan finished without discovering any hub.
	ErrNoHubFound = errors.New("no hub found")
)

// WrongMessageError reports a response of an unexpected type, usually a
// stray notification arriving where a specific reply was required.
type WrongMessageError struct {
	Want protocol.Opcode
	Got  protocol.Opcode
}

func (e *WrongMessageError) Error() string {
	return fmt.Sprintf("unexpected message: want opcode 0x%02X, got 0x%02X", byte(e.Want), byte(e.Got))
}

// NotAcknowledgedError reports a request the hub answered with a NAK.
type NotAcknowledgedError struct {
	Request protocol.Opcode
}

func (e *NotAcknowledgedError) Error() string {
	return fmt.Sprintf("hub did not acknowledge request 0x%02X", byte(e.Request))
}

// MessageTooLargeError reports an outgoing message exceeding the size limit
// the hub announced during the handshake.
type MessageTooLargeError struct {
	Size int
	Max  int
}

func (e *MessageTooLargeError) Error() string {
	return fmt.Sprintf("message of %d bytes exceeds the hub limit of %d", e.Size, e.Max)
}
