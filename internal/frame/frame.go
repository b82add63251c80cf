// Package frame implements the byte framing used on the SPIKE Prime GATT
// link: a COBS variant with an 84-byte block size, XOR-obfuscated with 0x03,
// terminated by a raw 0x02 delimiter. Because every encoded byte except the
// trailing delimiter is XORed, 0x02 can only ever appear as the final byte of
// a frame, which is what lets the receive side reassemble fragmented
// notifications by looking for that byte.
package frame

import (
	"errors"
	"fmt"
)

const (
	// Delimiter terminates every frame and never occurs inside one.
	Delimiter byte = 0x02

	// PriorityMarker optionally prefixes a frame sent by the hub and is
	// excluded from the XOR pass.
	PriorityMarker byte = 0x01

	xorMask      byte = 0x03
	maxBlockSize byte = 84
	codeOffset   byte = 0x02
	noDelimiter  byte = 0xFF
)

var (
	// ErrTruncated is returned when a frame is too short to carry a payload.
	ErrTruncated = errors.New("frame truncated")

	// ErrMissingDelimiter is returned when a frame does not end with the
	// 0x02 delimiter byte.
	ErrMissingDelimiter = errors.New("frame missing trailing delimiter")
)

// Encode wraps payload into a single frame, trailing delimiter included.
// The input slice is not modified.
func Encode(payload []byte) []byte {
	// Worst case: one code byte per block plus the delimiter.
	buf := make([]byte, 1, len(payload)+len(payload)/int(maxBlockSize)+3)
	buf[0] = noDelimiter
	codeIndex := 0
	block := byte(1)

	for _, b := range payload {
		if b > Delimiter {
			buf = append(buf, b)
			block++
		}

		if b <= Delimiter || block > maxBlockSize {
			if b <= Delimiter {
				// Code byte encodes both the escaped value and the
				// distance to the next code byte.
				buf[codeIndex] = b*maxBlockSize + block + codeOffset
			}
			codeIndex = len(buf)
			buf = append(buf, noDelimiter)
			block = 1
		}
	}
	buf[codeIndex] = block + codeOffset

	for i := range buf {
		buf[i] ^= xorMask
	}
	return append(buf, Delimiter)
}

// Decode unwraps a single complete frame (trailing delimiter included) and
// returns its payload. The input slice is not modified.
func Decode(data []byte) ([]byte, error) {
	if len(data) < 2 {
		return nil, ErrTruncated
	}
	if data[len(data)-1] != Delimiter {
		return nil, ErrMissingDelimiter
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	start := 0
	if buf[0] == PriorityMarker {
		start = 1
		if len(buf) < 3 {
			return nil, ErrTruncated
		}
	}
	// The trailing delimiter stays raw; it doubles as the final code byte
	// that carries the implicit zero terminator.
	for i := start; i < len(buf)-1; i++ {
		buf[i] ^= xorMask
	}

	out := make([]byte, 0, len(buf))
	value, block, err := unescape(buf[start])
	if err != nil {
		return nil, err
	}
	for _, b := range buf[start+1:] {
		block--
		if block > 0 {
			out = append(out, b)
			continue
		}

		if value >= 0 {
			out = append(out, byte(value))
		}
		if value, block, err = unescape(b); err != nil {
			return nil, err
		}
	}

	if n := len(out); n == 0 || out[n-1] != 0 {
		return nil, fmt.Errorf("frame corrupt: missing zero terminator")
	}
	return out[:len(out)-1], nil
}

// unescape splits a code byte into the escaped value it stands for (-1 when
// the code carries no value) and the length of the block that follows it.
func unescape(code byte) (value int, block byte, err error) {
	if code == noDelimiter {
		return -1, maxBlockSize + 1, nil
	}
	if code < codeOffset {
		return 0, 0, fmt.Errorf("frame corrupt: invalid code byte 0x%02x", code)
	}

	value = int(code-codeOffset) / int(maxBlockSize)
	block = (code - codeOffset) % maxBlockSize
	if block == 0 {
		block = maxBlockSize
		value--
	}
	return value, block, nil
}
