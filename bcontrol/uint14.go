package bcontrol

import "fmt"

// MaxUint14 is the largest value representable as two 7-bit MIDI data bytes.
const MaxUint14 = 1<<14 - 1

// AppendUint14 appends n as two 7-bit bytes, most significant first.
// It panics if n does not fit in 14 bits.
func AppendUint14(b []byte, n uint16) []byte {
	if n > MaxUint14 {
		panic(fmt.Sprintf("bcontrol: %d does not fit in 14 bits", n))
	}
	return append(b, byte(n>>7)&0x7f, byte(n)&0x7f)
}

// Uint14 decodes the 14-bit value stored MSB first in b[0:2].
func Uint14(b []byte) (uint16, error) {
	if len(b) < 2 {
		return 0, fmt.Errorf("%w: unexpected end of 14-bit value", ErrMalformed)
	}
	msb, lsb := b[0], b[1]
	if msb > 0x7f || lsb > 0x7f {
		return 0, fmt.Errorf("%w: MIDI data byte overflow", ErrMalformed)
	}
	return uint16(msb)<<7 | uint16(lsb), nil
}

// uint7 decodes one 7-bit data byte from the front of b.
func uint7(b []byte) (byte, error) {
	if len(b) == 0 {
		return 0, fmt.Errorf("%w: unexpected end", ErrMalformed)
	}
	if b[0] > 0x7f {
		return 0, fmt.Errorf("%w: MIDI data byte overflow", ErrMalformed)
	}
	return b[0], nil
}
