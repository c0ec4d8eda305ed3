package logger

import "fmt"

// Level is the logger's severity threshold, ordered Debug < Info < Warning
// < Error.
type Level int

// The four levels, in increasing severity.
const (
	Debug Level = iota
	Info
	Warning
	Error
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel parses the --log-level CLI values ("debug", "info") plus the
// two levels the data model defines but the CLI flags don't expose.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "debug":
		return Debug, true
	case "info":
		return Info, true
	case "warning":
		return Warning, true
	case "error":
		return Error, true
	default:
		return 0, false
	}
}
