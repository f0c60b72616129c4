// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package wire

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/google/go-dap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests prove wire compatibility with go-dap: frames produced here
// must be readable by go-dap and vice versa.

func TestInterop_GoDapReadsOurFrames(t *testing.T) {
	t.Parallel()

	req := &Request{Command: "evaluate", Arguments: []byte(`{"expression":"1+1","context":"repl"}`)}
	req.Seq = 1
	req.Type = TypeRequest

	frame, encodeErr := EncodeFrame(req)
	require.NoError(t, encodeErr)

	msg, readErr := dap.ReadProtocolMessage(bufio.NewReader(bytes.NewReader(frame)))
	require.NoError(t, readErr)

	evalReq, ok := msg.(*dap.EvaluateRequest)
	require.True(t, ok)
	assert.Equal(t, 1, evalReq.Seq)
	assert.Equal(t, "evaluate", evalReq.Command)
	assert.Equal(t, "1+1", evalReq.Arguments.Expression)
	assert.Equal(t, "repl", evalReq.Arguments.Context)
}

func TestInterop_WeReadGoDapFrames(t *testing.T) {
	t.Parallel()

	stopped := &dap.StoppedEvent{
		Event: dap.Event{
			ProtocolMessage: dap.ProtocolMessage{Seq: 4, Type: "event"},
			Event:           "stopped",
		},
		Body: dap.StoppedEventBody{
			Reason:   "breakpoint",
			ThreadId: 1,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, dap.WriteProtocolMessage(&buf, stopped))

	d := NewDecoder()
	bodies := d.Feed(buf.Bytes())
	require.Len(t, bodies, 1)

	msg, decodeErr := DecodeMessage(bodies[0])
	require.NoError(t, decodeErr)

	evt, ok := msg.(*Event)
	require.True(t, ok)
	assert.Equal(t, 4, evt.Seq)
	assert.Equal(t, "stopped", evt.Event)
	assert.JSONEq(t, `{"reason":"breakpoint","threadId":1}`, string(evt.Body))
}
