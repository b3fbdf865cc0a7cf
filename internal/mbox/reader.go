// Package mbox reads and writes mboxrd files: messages preceded by a
// "From " separator line, with body lines matching ^>*From escaped by one
// extra '>'.
package mbox

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

const maxLineBytes = 32 << 20 // 32 MiB

// ErrMessageTooLarge is returned for a message over the reader's limit. The
// reader skips past it, so Next can be called again.
var ErrMessageTooLarge = errors.New("mbox message exceeds max size")

// Message is one message of an mbox file.
type Message struct {
	Separator Separator

	// Raw is the RFC 5322 message (headers and body) with the separator
	// removed and body lines unescaped.
	Raw []byte
}

// Reader reads one message at a time from an mbox stream.
type Reader struct {
	br       *bufio.Reader
	maxBytes int64

	next    Separator
	hasNext bool
	eof     bool
}

// NewReader returns a reader that rejects messages larger than maxBytes.
// A maxBytes of zero or less disables the limit.
func NewReader(r io.Reader, maxBytes int64) *Reader {
	return &Reader{br: bufio.NewReader(r), maxBytes: maxBytes}
}

// Next returns the next message, or io.EOF after the last one. Text before
// the first separator is skipped.
func (r *Reader) Next() (*Message, error) {
	if r.eof && !r.hasNext {
		return nil, io.EOF
	}

	for !r.hasNext {
		line, err := r.readLine()
		if err != nil && err != io.EOF {
			return nil, err
		}
		if sep, ok := ParseSeparator(string(line)); ok {
			r.next, r.hasNext = sep, true
			break
		}
		if err == io.EOF {
			r.eof = true
			return nil, io.EOF
		}
	}

	msg := &Message{Separator: r.next}
	r.hasNext = false

	var raw bytes.Buffer
	tooLarge := false
	for !r.eof {
		line, err := r.readLine()
		if err != nil && err != io.EOF {
			return nil, err
		}
		if err == io.EOF {
			r.eof = true
		}
		if len(line) == 0 {
			continue
		}
		if sep, ok := ParseSeparator(string(line)); ok {
			r.next, r.hasNext = sep, true
			break
		}
		if tooLarge {
			continue
		}
		line = unescape(line)
		if r.maxBytes > 0 && int64(raw.Len()+len(line)) > r.maxBytes {
			tooLarge = true
			continue
		}
		raw.Write(line)
	}

	if tooLarge {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrMessageTooLarge, r.maxBytes)
	}
	msg.Raw = trimSeparatorBlank(raw.Bytes())
	return msg, nil
}

// readLine returns one line including its newline. Lines longer than the
// bufio buffer are accumulated.
func (r *Reader) readLine() ([]byte, error) {
	var out []byte
	for {
		b, err := r.br.ReadSlice('\n')
		out = append(out, b...)
		if len(out) > maxLineBytes {
			return nil, fmt.Errorf("mbox line exceeds max length (%d bytes)", maxLineBytes)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return out, err
	}
}

// unescape removes one '>' from lines matching ^>+From .
func unescape(line []byte) []byte {
	i := 0
	for i < len(line) && line[i] == '>' {
		i++
	}
	if i > 0 && bytes.HasPrefix(line[i:], fromPrefix) {
		return line[1:]
	}
	return line
}

// trimSeparatorBlank drops the blank line writers put between messages.
func trimSeparatorBlank(raw []byte) []byte {
	switch {
	case bytes.HasSuffix(raw, []byte("\r\n\r\n")):
		return raw[:len(raw)-2]
	case bytes.HasSuffix(raw, []byte("\n\n")):
		return raw[:len(raw)-1]
	}
	return raw
}
