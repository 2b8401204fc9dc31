// Package bcontrol implements Behringer's B-Control system exclusive
// protocol as spoken by the BCR2000 and BCF2000.
//
// Every B-Control SysEx payload (the bytes after the manufacturer ID) has
// the same layout:
//
//	[0]   device:  0x00-0x0F specific, 0x7F any
//	[1]   model:   0x14 BCF, 0x15 BCR, 0x7F any
//	[2]   opcode
//	[3..] payload, opcode specific
//
// Message.Encode and Decode translate between that layout and Message
// values; Message.MIDI and FromMIDI add and strip the SysEx framing and
// the Behringer manufacturer ID.
//
// The opcode table follows Mark van den Berg's reverse engineering of the
// devices (https://mountainutilities.eu/).
package bcontrol
