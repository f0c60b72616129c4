// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package transport

import (
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usvc-dev/dapwire/pkg/testutil"
	"github.com/usvc-dev/dapwire/pkg/wire"
)

// startStreamPair connects two streams over an in-memory pipe and starts
// both read pumps.
func startStreamPair(t *testing.T) (*Stream, *Stream) {
	t.Helper()

	clientEnd, serverEnd := net.Pipe()

	client := NewNetStream(clientEnd, ConnConfig{Logger: testutil.NewLogForTesting(t.Name() + "-client")})
	server := NewNetStream(serverEnd, ConnConfig{Logger: testutil.NewLogForTesting(t.Name() + "-server")})

	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	t.Cleanup(cancel)

	clientDone := make(chan error, 1)
	serverDone := make(chan error, 1)
	go func() { clientDone <- client.Run(ctx) }()
	go func() { serverDone <- server.Run(ctx) }()

	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
		<-clientDone
		<-serverDone
	})

	return client, server
}

func TestStream_RequestResponseRoundTrip(t *testing.T) {
	t.Parallel()

	client, server := startStreamPair(t)

	// Server answers every inbound request.
	requestChan := make(chan *wire.Request, 4)
	reqSub := server.Conn().SubscribeRequests(requestChan)
	defer reqSub.Cancel()

	go func() {
		for req := range requestChan {
			resp := &wire.Response{
				RequestSeq: req.Seq,
				Command:    req.Command,
				Success:    true,
				Body:       json.RawMessage(`{"result":"2"}`),
			}
			if sendErr := server.Conn().SendResponse(resp); sendErr != nil {
				return
			}
		}
	}()

	ctx, cancel := testutil.GetTestContext(t, 5*time.Second)
	defer cancel()

	resp, callErr := client.Conn().Call(ctx, "evaluate", map[string]string{"expr": "1+1"})
	require.NoError(t, callErr)
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"result":"2"}`, string(resp.Body))

	// Several calls in a row keep correlating correctly.
	for i := 0; i < 3; i++ {
		resp, callErr = client.Conn().Call(ctx, "evaluate", map[string]string{"expr": "1+1"})
		require.NoError(t, callErr)
		assert.True(t, resp.Success)
	}

	assert.Equal(t, 0, client.Conn().PendingRequests())
}

func TestStream_EventDelivery(t *testing.T) {
	t.Parallel()

	client, server := startStreamPair(t)

	eventChan := make(chan *wire.Event, 4)
	sub := client.Conn().SubscribeEvents(eventChan)
	defer sub.Cancel()

	require.NoError(t, server.Conn().SendEvent("stopped", map[string]any{"reason": "breakpoint"}))
	require.NoError(t, server.Conn().SendEvent("continued", nil))

	for _, want := range []string{"stopped", "continued"} {
		select {
		case evt := <-eventChan:
			assert.Equal(t, want, evt.Event)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for event %q", want)
		}
	}
}

func TestStream_CloseUnblocksRun(t *testing.T) {
	t.Parallel()

	clientEnd, serverEnd := net.Pipe()
	defer serverEnd.Close()

	stream := NewNetStream(clientEnd, ConnConfig{})

	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- stream.Run(ctx) }()

	require.NoError(t, stream.Close())

	select {
	case runErr := <-runDone:
		assert.NoError(t, runErr)
	case <-time.After(5 * time.Second):
		t.Fatal("Run was not unblocked by Close")
	}

	// Double close is safe.
	assert.NoError(t, stream.Close())
}

func TestStream_ContextCancelUnblocksRun(t *testing.T) {
	t.Parallel()

	clientEnd, serverEnd := net.Pipe()
	defer serverEnd.Close()

	stream := NewNetStream(clientEnd, ConnConfig{})

	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)

	runDone := make(chan error, 1)
	go func() { runDone <- stream.Run(ctx) }()

	cancel()

	select {
	case runErr := <-runDone:
		assert.NoError(t, runErr)
	case <-time.After(5 * time.Second):
		t.Fatal("Run was not unblocked by context cancellation")
	}
}

func TestStream_PeerDisconnectFailsPendingRequests(t *testing.T) {
	t.Parallel()

	clientEnd, serverEnd := net.Pipe()

	stream := NewNetStream(clientEnd, ConnConfig{})

	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- stream.Run(ctx) }()

	// Drain the peer side so the request write completes, then hang up.
	go func() {
		buf := make([]byte, 1024)
		for {
			if _, readErr := serverEnd.Read(buf); readErr != nil {
				return
			}
		}
	}()

	var cbErrs []error
	cbFired := make(chan struct{})
	_, sendErr := stream.Conn().SendRequest("evaluate", nil, func(resp *wire.Response, err error) {
		cbErrs = append(cbErrs, err)
		close(cbFired)
	})
	require.NoError(t, sendErr)

	require.NoError(t, serverEnd.Close())

	select {
	case <-cbFired:
	case <-time.After(5 * time.Second):
		t.Fatal("pending callback did not fire on peer disconnect")
	}

	require.Len(t, cbErrs, 1)
	assert.ErrorIs(t, cbErrs[0], ErrConnClosed)

	<-runDone
}

func TestStdioStream(t *testing.T) {
	t.Parallel()

	// Connected pipes standing in for a child process's stdio.
	serverRead, clientWrite := io.Pipe()
	clientRead, serverWrite := io.Pipe()

	client := NewStdioStream(clientRead, clientWrite, ConnConfig{Logger: testutil.NewLogForTesting(t.Name() + "-client")})
	server := NewStdioStream(serverRead, serverWrite, ConnConfig{Logger: testutil.NewLogForTesting(t.Name() + "-server")})

	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	clientDone := make(chan error, 1)
	serverDone := make(chan error, 1)
	go func() { clientDone <- client.Run(ctx) }()
	go func() { serverDone <- server.Run(ctx) }()

	defer func() {
		_ = client.Close()
		_ = server.Close()
		<-clientDone
		<-serverDone
	}()

	requestChan := make(chan *wire.Request, 1)
	reqSub := server.Conn().SubscribeRequests(requestChan)
	defer reqSub.Cancel()

	go func() {
		for req := range requestChan {
			resp := &wire.Response{RequestSeq: req.Seq, Command: req.Command, Success: true}
			if sendErr := server.Conn().SendResponse(resp); sendErr != nil {
				return
			}
		}
	}()

	resp, callErr := client.Conn().Call(ctx, "initialize", map[string]string{"adapterID": "test"})
	require.NoError(t, callErr)
	assert.True(t, resp.Success)
	assert.Equal(t, "initialize", resp.Command)
}
