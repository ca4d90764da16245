// Package acclog provides the level-gated logging used by the golden
// model and the command-line tools.
package acclog

import (
	"fmt"
	"os"
	"sort"
)

// Log levels, most to least severe when gated against Level.
const (
	Error = iota
	Warn
	Info
	Debug
)

// Level is the process-wide verbosity gate. Messages above Level are
// dropped. Defaults to Error so a library consumer sees only failures
// unless it opts into more.
var Level = Error

// Fields carries structured key/value context alongside a log line, e.g.
// unknown-opcode events logged by the golden model.
type Fields map[string]interface{}

func levelToString(level int) string {
	switch level {
	case Error:
		return "ERROR"
	case Warn:
		return "WARN"
	case Info:
		return "INFO"
	case Debug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// Printf logs a message at the given level if Level permits it.
func Printf(level int, format string, args ...interface{}) {
	if level > Level {
		return
	}
	fmt.Fprintf(os.Stderr, "[%s]: %s\n", levelToString(level), fmt.Sprintf(format, args...))
}

// PrintfFields logs a message at the given level with structured fields
// appended in stable key order.
func PrintfFields(level int, fields Fields, format string, args ...interface{}) {
	if level > Level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if len(fields) == 0 {
		fmt.Fprintf(os.Stderr, "[%s]: %s\n", levelToString(level), msg)
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(os.Stderr, "[%s]: %s", levelToString(level), msg)
	for _, k := range keys {
		fmt.Fprintf(os.Stderr, " %s=%v", k, fields[k])
	}
	fmt.Fprintln(os.Stderr)
}
