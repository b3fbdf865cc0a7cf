package mbox

import (
	"bufio"
	"bytes"
	"io"
	"time"
)

var fromPrefix = []byte("From ")

// Writer appends messages to an mbox stream.
type Writer struct {
	bw *bufio.Writer
}

// NewWriter returns a writer on w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// WriteMessage writes a separator for sender and date, then raw with
// ^>*From lines escaped, a final newline and one blank line.
func (w *Writer) WriteMessage(sender string, date time.Time, raw []byte) error {
	if _, err := w.bw.WriteString(FormatSeparator(sender, date) + "\n"); err != nil {
		return err
	}
	for len(raw) > 0 {
		line := raw
		if i := bytes.IndexByte(raw, '\n'); i >= 0 {
			line = raw[:i+1]
		}
		raw = raw[len(line):]
		if needsEscape(line) {
			if err := w.bw.WriteByte('>'); err != nil {
				return err
			}
		}
		if _, err := w.bw.Write(line); err != nil {
			return err
		}
		if line[len(line)-1] != '\n' {
			if err := w.bw.WriteByte('\n'); err != nil {
				return err
			}
		}
	}
	return w.bw.WriteByte('\n')
}

// Flush writes any buffered data.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

func needsEscape(line []byte) bool {
	i := 0
	for i < len(line) && line[i] == '>' {
		i++
	}
	return bytes.HasPrefix(line[i:], fromPrefix)
}
