// Package lineio turns byte streams into complete lines of text.
//
// External tools write to their output pipes in arbitrary chunk sizes, so a
// single logical line may arrive split across several reads. Decoder buffers
// the incomplete trailing line between writes and only emits lines once their
// terminator has been seen. Bytes are decoded with a fixed text encoding;
// malformed sequences degrade to best-effort decoding rather than failing
// the stream.
package lineio

import (
	"bytes"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Decoder accumulates byte chunks and produces complete lines with chunk
// boundaries erased. It implements io.Writer so a pipe can be copied into it
// directly. Decoder is not safe for concurrent use; callers feed it from a
// single pumping goroutine.
type Decoder struct {
	dec    *encoding.Decoder
	onLine func(string)
	carry  []byte
	lines  []string
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithEncoding sets the text encoding used to decode lines.
// The default is UTF-8.
func WithEncoding(enc encoding.Encoding) Option {
	return func(d *Decoder) {
		d.dec = enc.NewDecoder()
	}
}

// WithLineHandler sets a callback invoked for each completed line as it is
// decoded, before it is appended to the accumulated line set.
func WithLineHandler(fn func(string)) Option {
	return func(d *Decoder) {
		d.onLine = fn
	}
}

// NewDecoder creates a Decoder.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		dec: unicode.UTF8.NewDecoder(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Write accepts the next chunk of the stream. It never returns an error;
// the signature satisfies io.Writer.
func (d *Decoder) Write(p []byte) (int, error) {
	d.carry = append(d.carry, p...)

	for {
		i := bytes.IndexByte(d.carry, '\n')
		if i < 0 {
			break
		}
		d.emit(d.carry[:i])
		d.carry = d.carry[i+1:]
	}

	return len(p), nil
}

// Flush signals end-of-stream. Any buffered partial line is emitted as a
// final line if non-empty. The Decoder remains usable afterward, starting a
// fresh line.
func (d *Decoder) Flush() {
	if len(d.carry) == 0 {
		return
	}
	d.emit(d.carry)
	d.carry = nil
}

// Lines returns a copy of all completed lines decoded so far.
func (d *Decoder) Lines() []string {
	out := make([]string, len(d.lines))
	copy(out, d.lines)
	return out
}

// Len returns the number of completed lines.
func (d *Decoder) Len() int {
	return len(d.lines)
}

// emit decodes a raw line and records it. A trailing carriage return is
// stripped so CRLF streams decode the same as LF streams.
func (d *Decoder) emit(raw []byte) {
	if n := len(raw); n > 0 && raw[n-1] == '\r' {
		raw = raw[:n-1]
	}

	line := d.decode(raw)
	d.lines = append(d.lines, line)
	if d.onLine != nil {
		d.onLine(line)
	}
}

// decode converts raw bytes using the configured encoding. Decode errors
// fall back to the raw bytes; a garbled line is better than a lost one.
func (d *Decoder) decode(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	out, err := d.dec.Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}
