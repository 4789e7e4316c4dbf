package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// EarlyLog reports problems that happen before the zap logger exists,
// such as an unreadable config file or a bad log level.
type EarlyLog struct {
	out    io.Writer
	prefix string
}

// NewEarlyLog writes to out, or stderr when out is nil. Every line starts
// with prefix and the level.
func NewEarlyLog(out io.Writer, prefix string) *EarlyLog {
	if out == nil {
		out = os.Stderr
	}
	return &EarlyLog{out: out, prefix: prefix}
}

func (l *EarlyLog) Warn(msg string, args ...interface{}) {
	l.write("warn", msg, args)
}

func (l *EarlyLog) Info(msg string, args ...interface{}) {
	l.write("info", msg, args)
}

func (l *EarlyLog) write(level, msg string, args []interface{}) {
	line := fmt.Sprintf(msg, args...)
	line = strings.TrimRight(line, "\n")
	if l.prefix != "" {
		fmt.Fprintf(l.out, "%s: %s: %s\n", l.prefix, level, line)
		return
	}
	fmt.Fprintf(l.out, "%s: %s\n", level, line)
}
