// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// readChunkSize is the size of the scratch buffer used by the read pump.
// Frames larger than this are reassembled by the decoder across reads.
const readChunkSize = 4096

// Stream couples a Conn to a byte-oriented duplex transport such as a TCP
// connection, a Unix socket or a pair of stdio pipes. The stream owns the
// read pump: Run reads raw chunks from the transport and pushes them into
// the Conn until EOF, error, or context cancellation.
type Stream struct {
	conn *Conn
	src  io.Reader

	// close releases the underlying transport
	close func() error

	// closed indicates whether the stream has been closed
	closed bool
	mu     sync.Mutex
}

// NewNetStream creates a Stream over a network connection (TCP or Unix socket).
func NewNetStream(netConn net.Conn, config ConnConfig) *Stream {
	return &Stream{
		conn:  NewConn(netConn, config),
		src:   netConn,
		close: netConn.Close,
	}
}

// NewStdioStream creates a Stream over a pair of stdio pipes. The caller is
// responsible for ensuring that in supports reading and out supports writing.
func NewStdioStream(in io.ReadCloser, out io.WriteCloser, config ConnConfig) *Stream {
	return &Stream{
		conn: NewConn(out, config),
		src:  in,
		close: func() error {
			var errs []error
			if closeErr := in.Close(); closeErr != nil {
				errs = append(errs, fmt.Errorf("failed to close input: %w", closeErr))
			}
			if closeErr := out.Close(); closeErr != nil {
				errs = append(errs, fmt.Errorf("failed to close output: %w", closeErr))
			}
			return errors.Join(errs...)
		},
	}
}

// Conn returns the connection served by this stream.
func (s *Stream) Conn() *Conn {
	return s.conn
}

// Run pumps inbound bytes from the transport into the connection until the
// transport reaches EOF, fails, or ctx is cancelled. EOF and cancellation
// return nil. Run closes the stream before returning, which fails any
// outstanding request callbacks with ErrConnClosed.
func (s *Stream) Run(ctx context.Context) error {
	// Closing the transport unblocks a pending Read when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() {
		_ = s.Close()
	})
	defer stop()
	defer func() {
		_ = s.Close()
	}()

	buf := make([]byte, readChunkSize)
	for {
		n, readErr := s.src.Read(buf)
		if n > 0 {
			s.conn.Feed(buf[:n])
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) || ctx.Err() != nil || s.isClosed() {
				return nil
			}
			return fmt.Errorf("failed to read from transport: %w", readErr)
		}
	}
}

// Close closes the underlying transport and the connection, releasing any
// associated resources. After Close, a blocked Run returns and any further
// sends on the connection fail with ErrConnClosed. Close is idempotent.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	closeErr := s.close()
	if connErr := s.conn.Close(); connErr != nil && closeErr == nil {
		closeErr = connErr
	}

	return closeErr
}

func (s *Stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
