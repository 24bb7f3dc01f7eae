// Package sse consumes the Server-Sent-Events streams produced by the
// preview and refine endpoints. It decodes the event:/data: line framing
// into a closed set of typed events and guarantees exactly one terminal
// resolution per stream.
package sse

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
)

// Frame is one raw SSE frame: an event name and its data payload. Frames
// are terminated by a blank line; data spanning multiple data: lines is
// joined with newlines.
type Frame struct {
	Event string
	Data  []byte
}

// Decoder incrementally decodes SSE frames from a byte stream. A line
// split across two underlying chunks is buffered until its newline
// arrives; multiple frames inside one chunk decode as separate frames.
type Decoder struct {
	reader *bufio.Reader
}

// NewDecoder constructs a Decoder over the given stream.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReader(r)}
}

// Next returns the next complete frame. It returns io.EOF when the
// stream closes cleanly with no pending frame. A frame cut off by EOF
// before its blank-line terminator is returned together with io.EOF.
func (d *Decoder) Next() (Frame, error) {
	var frame Frame
	var data bytes.Buffer
	sawField := false

	flush := func() Frame {
		frame.Data = data.Bytes()
		return frame
	}

	for {
		line, err := d.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if line != "" {
					sawField = d.parseLine(strings.TrimRight(line, "\r\n"), &frame, &data) || sawField
				}
				if sawField {
					return flush(), io.EOF
				}
				return Frame{}, io.EOF
			}
			return Frame{}, err
		}

		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			if sawField {
				return flush(), nil
			}
			// Stray blank line before any field; keep reading.
			continue
		}
		sawField = d.parseLine(trimmed, &frame, &data) || sawField
	}
}

// parseLine folds one non-blank line into the frame under construction.
// Returns true if the line contributed a field.
func (d *Decoder) parseLine(line string, frame *Frame, data *bytes.Buffer) bool {
	if strings.HasPrefix(line, ":") {
		// Comment/heartbeat line.
		return false
	}
	switch {
	case strings.HasPrefix(line, "event:"):
		frame.Event = strings.TrimSpace(line[len("event:"):])
	case strings.HasPrefix(line, "data:"):
		if data.Len() > 0 {
			data.WriteByte('\n')
		}
		data.WriteString(strings.TrimPrefix(line[len("data:"):], " "))
	default:
		// Unknown field names are ignored per the SSE framing rules.
		return false
	}
	return true
}
