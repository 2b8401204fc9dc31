// Package bcl moves BCL scripts to and from B-Control devices.
//
// A device transmits a script as a sequence of BclLine messages with
// consecutive indexes starting at 0, the last line being "$end". Session
// reassembles such a sequence; Receive, RequestPreset and RequestGlobal run
// sessions against a MIDI input, and Send uploads a script line by line.
package bcl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chabad360/bcr2kosc/bcontrol"
)

// EndMarker is the text of the final line of every BCL script.
const EndMarker = "$end"

var (
	// ErrOutOfOrder is returned when a line arrives with an unexpected index.
	// Devices never reorder or retransmit, so the session is lost.
	ErrOutOfOrder = errors.New("bcl: missing or out-of-order line")

	// ErrTruncated is returned when the inbound stream ends before the
	// exchange is complete.
	ErrTruncated = errors.New("bcl: stream ended before $end")
)

// Session reassembles one script from indexed lines.
type Session struct {
	lines []string
	next  uint16
	done  bool
}

// Accept adds line to the script. It reports whether the script is
// complete. Lines offered after completion are ignored.
func (s *Session) Accept(line bcontrol.BclLine) (bool, error) {
	if s.done {
		return true, nil
	}
	if line.Index != s.next {
		return false, fmt.Errorf("%w: got line %d, want %d", ErrOutOfOrder, line.Index, s.next)
	}
	s.next++
	s.lines = append(s.lines, line.Text)
	s.done = line.Text == EndMarker
	return s.done, nil
}

// Done reports whether the end marker has been accepted.
func (s *Session) Done() bool {
	return s.done
}

// Lines returns the lines accepted so far, including the end marker.
func (s *Session) Lines() []string {
	return s.lines
}

// Script joins lines into BCL text, one line per row.
func Script(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// ParseScript splits BCL text into lines. Carriage returns and the empty
// line after a final newline are dropped.
func ParseScript(text string) []string {
	text = strings.TrimSuffix(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
