package netsvc

import (
	"fmt"
	"io"
	"time"
)

// logger is a minimal timestamp-prefixed writer, matching the teacher's
// fmt.Fprintf(os.Stderr, ...) style rather than a structured logging
// library (see DESIGN.md for why this one ambient concern stays on the
// standard library).
type logger struct {
	out io.Writer
}

func newLogger(out io.Writer) *logger {
	return &logger{out: out}
}

func (l *logger) logf(format string, args ...any) {
	if l == nil || l.out == nil {
		return
	}

	ts := time.Now().UTC().Format(time.RFC3339)
	fmt.Fprintf(l.out, "%s "+format+"\n", append([]any{ts}, args...)...)
}
