// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package wire

import (
	"encoding/json"
	"fmt"
	"io"
)

// headerSeparator terminates the header block of a frame.
// The Content-Length line is followed by an empty line, so a complete
// header always ends with two CRLF pairs.
const headerSeparator = "\r\n\r\n"

// EncodeFrame serializes a message into exactly one wire frame:
//
//	Content-Length: <N>\r\n\r\n<N bytes of UTF-8 JSON>
//
// N counts bytes of the UTF-8 encoding of the JSON body, not characters.
func EncodeFrame(msg Message) ([]byte, error) {
	body, marshalErr := json.Marshal(msg)
	if marshalErr != nil {
		return nil, fmt.Errorf("failed to marshal message body: %w", marshalErr)
	}

	frame := make([]byte, 0, len(body)+32)
	frame = fmt.Appendf(frame, "Content-Length: %d%s", len(body), headerSeparator)
	frame = append(frame, body...)
	return frame, nil
}

// WriteMessage encodes msg and writes the resulting frame to w as a single
// write, so the header and body can never be interleaved with another frame.
// Callers sharing one sink across goroutines must serialize WriteMessage calls.
func WriteMessage(w io.Writer, msg Message) error {
	frame, encodeErr := EncodeFrame(msg)
	if encodeErr != nil {
		return encodeErr
	}

	if _, writeErr := w.Write(frame); writeErr != nil {
		return fmt.Errorf("failed to write frame: %w", writeErr)
	}

	return nil
}
