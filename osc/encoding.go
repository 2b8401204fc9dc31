package osc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

const (
	// MaxPacketSize is the largest payload a single UDP datagram can carry.
	MaxPacketSize = 65507

	bit32Size = 4
	bit64Size = 8
)

var bPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, MaxPacketSize)
		return &b
	},
}

////
// De/Encoding functions
////

// parseBlob parses an OSC blob from data. It returns the blob contents and
// the number of bytes consumed, padding included.
func parseBlob(data []byte) ([]byte, int, error) {
	if len(data) < bit32Size {
		return nil, 0, fmt.Errorf("parseBlob: %w", io.ErrUnexpectedEOF)
	}

	blobLen := int(binary.BigEndian.Uint32(data[:bit32Size]))
	data = data[bit32Size:]
	if blobLen < 0 || blobLen > len(data) {
		return nil, 0, fmt.Errorf("parseBlob: invalid blob length %d", blobLen)
	}

	n := bit32Size + blobLen
	n += padBytesNeeded(n)
	if n-bit32Size > len(data) {
		return nil, 0, fmt.Errorf("parseBlob: missing padding")
	}

	blob := make([]byte, blobLen)
	copy(blob, data)
	return blob, n, nil
}

// appendBlob appends data as an OSC blob, padded to 32 bits.
func appendBlob(b []byte, data []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(data)))
	b = append(b, data...)
	return appendPadding(b, bit32Size+len(data))
}

// parsePaddedString reads a padded string from the given slice and returns the string and the number of bytes read.
func parsePaddedString(data []byte) (string, int, error) {
	pos := bytes.IndexByte(data, 0)
	if pos == -1 {
		return "", 0, fmt.Errorf("parsePaddedString: %w", io.EOF)
	}

	n := pos + 1
	n += padBytesNeeded(n)
	if n > len(data) {
		return "", 0, fmt.Errorf("parsePaddedString: %w", io.ErrUnexpectedEOF)
	}

	return string(data[:pos]), n, nil
}

// appendPaddedString appends str, its null terminator and padding bytes.
func appendPaddedString(b []byte, str string) []byte {
	b = append(b, str...)
	b = append(b, 0)
	return appendPadding(b, len(str)+1)
}

func appendPadding(b []byte, elementLen int) []byte {
	for i := padBytesNeeded(elementLen); i > 0; i-- {
		b = append(b, 0)
	}
	return b
}

// padBytesNeeded determines how many bytes are needed to fill up to the next 4
// byte length.
func padBytesNeeded(elementLen int) int {
	return (4 - (elementLen % 4)) % 4
}
