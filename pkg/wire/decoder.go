// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package wire

import (
	"bytes"
	"regexp"
	"strconv"
)

var contentLengthPattern = regexp.MustCompile(`Content-Length: (\d+)`)

// compactThreshold is the consumed-prefix size past which the decoder
// shifts unconsumed bytes back to the start of its buffer instead of
// letting the buffer grow without bound.
const compactThreshold = 4096

// Decoder incrementally reassembles wire frames from arbitrarily chunked
// input. It keeps a grow-only buffer with a consumed-prefix offset; bytes
// are appended on Feed and complete frames are sliced off the front.
//
// A Decoder is not safe for concurrent use. Each connection owns one
// Decoder and feeds it from a single goroutine.
type Decoder struct {
	buf []byte
	off int

	// bodyLen is the expected body length of the frame being assembled,
	// or -1 while the decoder is still waiting for a complete header.
	bodyLen int

	// OnHeaderDiscarded, if set, is called with each header block that was
	// dropped because it carried no usable Content-Length token. Discarded
	// headers are not errors; framing continues with the remaining input.
	OnHeaderDiscarded func(header []byte)
}

// NewDecoder returns a Decoder awaiting the first frame header.
func NewDecoder() *Decoder {
	return &Decoder{bodyLen: -1}
}

// Feed appends p to the receive buffer and drains every frame that is now
// complete, returning the raw message bodies in arrival order. Bodies are
// copies; they remain valid after subsequent Feed calls. Zero-length bodies
// are consumed but not returned.
//
// Insufficient data is not an error: Feed simply returns what is complete
// and retains the rest for the next call.
func (d *Decoder) Feed(p []byte) [][]byte {
	d.buf = append(d.buf, p...)

	var bodies [][]byte
	for {
		if d.bodyLen < 0 {
			if !d.scanHeader() {
				break
			}
			continue
		}

		body, ok := d.takeBody()
		if !ok {
			break
		}
		if len(body) > 0 {
			bodies = append(bodies, body)
		}
	}

	d.compact()
	return bodies
}

// Buffered returns the number of bytes held for a not-yet-complete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.off
}

// scanHeader looks for a complete header block in the buffered input.
// It returns false when no two-CRLF separator is present yet. A complete
// block without a usable Content-Length token, including a digit run too
// large for an int, is dropped and scanning resumes on the next loop
// iteration.
func (d *Decoder) scanHeader() bool {
	sep := bytes.Index(d.buf[d.off:], []byte(headerSeparator))
	if sep < 0 {
		return false
	}

	header := d.buf[d.off : d.off+sep]
	d.off += sep + len(headerSeparator)

	if match := contentLengthPattern.FindSubmatch(header); match != nil {
		if length, parseErr := strconv.Atoi(string(match[1])); parseErr == nil {
			d.bodyLen = length
			return true
		}
	}

	if d.OnHeaderDiscarded != nil {
		d.OnHeaderDiscarded(header)
	}
	// Stay in the header state; the next iteration re-scans what follows.
	return true
}

// takeBody slices out the expected body once enough bytes have arrived.
func (d *Decoder) takeBody() ([]byte, bool) {
	if len(d.buf)-d.off < d.bodyLen {
		return nil, false
	}

	body := make([]byte, d.bodyLen)
	copy(body, d.buf[d.off:d.off+d.bodyLen])
	d.off += d.bodyLen
	d.bodyLen = -1
	return body, true
}

// compact reclaims the consumed prefix once it grows past the threshold,
// or resets the buffer outright when everything has been consumed.
func (d *Decoder) compact() {
	if d.off == len(d.buf) {
		d.buf = d.buf[:0]
		d.off = 0
		return
	}

	if d.off >= compactThreshold {
		n := copy(d.buf, d.buf[d.off:])
		d.buf = d.buf[:n]
		d.off = 0
	}
}
