package osc

import (
	"encoding/binary"
	"time"
)

const (
	secondsFrom1900To1970 = 2208988800

	// ImmediateTimetag is the reserved value meaning "immediately".
	ImmediateTimetag = Timetag(1)
)

// Timetag represents an OSC Time Tag.
// An OSC Time Tag is defined as follows:
// Time tags are represented by a 64 bit fixed point number. The first 32 bits
// specify the number of seconds since midnight on January 1, 1900, and the
// last 32 bits specify fractional parts of a second to a precision of about
// 200 picoseconds. This is the representation used by Internet NTP timestamps.
type Timetag uint64

// NewTimetagFromTime returns a new OSC time tag object from a time.Time.
func NewTimetagFromTime(timeStamp time.Time) Timetag {
	return Timetag(timeToTimetag(timeStamp))
}

// Time returns the time.
func (t Timetag) Time() time.Time {
	return timetagToTime(t)
}

// FractionalSecond returns the last 32 bits of the OSC time tag. Specifies the
// fractional part of a second.
func (t Timetag) FractionalSecond() uint32 {
	return uint32(t)
}

// SecondsSinceEpoch returns the first 32 bits (the number of seconds since the
// midnight 1900) from the OSC time tag.
func (t Timetag) SecondsSinceEpoch() uint32 {
	return uint32(t >> 32)
}

// MarshalBinary converts the OSC time tag to a byte array.
func (t Timetag) MarshalBinary() (b []byte, err error) {
	b = make([]byte, bit64Size)
	binary.BigEndian.PutUint64(b, uint64(t))
	return
}

// ExpiresIn calculates the duration until the time tag is due. Zero, the
// immediate tag, and tags in the past all return zero.
func (t Timetag) ExpiresIn() time.Duration {
	if t <= ImmediateTimetag {
		return 0
	}

	d := time.Until(timetagToTime(t))
	if d <= 0 {
		return 0
	}

	return d
}

// timeToTimetag converts the given time to an OSC time tag. The fractional
// part is nanoseconds scaled to 2^32.
func timeToTimetag(t time.Time) (timetag uint64) {
	timetag = uint64(secondsFrom1900To1970+t.Unix()) << 32
	return timetag + uint64(t.Nanosecond())<<32/uint64(time.Second)
}

// timetagToTime converts the given timetag to a time object.
func timetagToTime(timetag Timetag) (t time.Time) {
	nsec := (uint64(timetag&0xffffffff) * uint64(time.Second)) >> 32
	return time.Unix(int64(timetag>>32)-secondsFrom1900To1970, int64(nsec))
}
