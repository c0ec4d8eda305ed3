package logger

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iGTsan/flow-inspector/internal/frame"
)

// Entry is a single log line: a timestamp plus optional frame, alert text,
// and free-form message.
type Entry struct {
	ID        uuid.UUID
	Timestamp time.Time
	Level     Level
	Frame     *frame.Frame
	AlertText string
	Message   string
}

// serialize formats e as:
//
//	<formatted-timestamp> [Packet: <short-hex> ]? [Alert: <text> ]? [Message: <text> ]?
//
// where short-hex is the decimal byte dump of the frame when its length is
// under 10 bytes, and empty otherwise.
func (e *Entry) serialize() string {
	var b strings.Builder

	b.WriteString(e.Timestamp.Format("2006-01-02 15:04:05"))

	if e.Frame != nil {
		b.WriteString(" [Packet: ")
		b.WriteString(shortHex(e.Frame.Bytes))
		b.WriteString(" ]")
	}

	if e.AlertText != "" {
		b.WriteString(" [Alert: ")
		b.WriteString(e.AlertText)
		b.WriteString(" ]")
	}

	if e.Message != "" {
		b.WriteString(" [Message: ")
		b.WriteString(e.Message)
		b.WriteString(" ]")
	}

	b.WriteByte('\n')

	return b.String()
}

// shortHex returns the decimal byte dump of b if it has fewer than 10
// bytes, or "" otherwise. Named for the field it fills, not its encoding:
// the format is a decimal dump, not hexadecimal.
func shortHex(b []byte) string {
	if len(b) >= 10 {
		return ""
	}

	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strconv.Itoa(int(v))
	}

	return strings.Join(parts, " ")
}

// approxSize estimates e's contribution to the in-memory batch, for the
// byte-size rotation guard.
func (e *Entry) approxSize() int {
	n := 64 // timestamp + struct overhead, approximate
	if e.Frame != nil {
		n += len(e.Frame.Bytes)
	}

	n += len(e.AlertText) + len(e.Message)

	return n
}
