// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage(t *testing.T) {
	t.Parallel()

	t.Run("request", func(t *testing.T) {
		body := []byte(`{"seq":1,"type":"request","command":"evaluate","arguments":{"expr":"1+1"}}`)

		msg, decodeErr := DecodeMessage(body)
		require.NoError(t, decodeErr)

		req, ok := msg.(*Request)
		require.True(t, ok)
		assert.Equal(t, 1, req.Seq)
		assert.Equal(t, TypeRequest, req.Type)
		assert.Equal(t, "evaluate", req.Command)
		assert.JSONEq(t, `{"expr":"1+1"}`, string(req.Arguments))
	})

	t.Run("response", func(t *testing.T) {
		body := []byte(`{"seq":2,"type":"response","request_seq":1,"command":"evaluate","success":true,"body":{"result":"2"}}`)

		msg, decodeErr := DecodeMessage(body)
		require.NoError(t, decodeErr)

		resp, ok := msg.(*Response)
		require.True(t, ok)
		assert.Equal(t, 1, resp.RequestSeq)
		assert.Equal(t, "evaluate", resp.Command)
		assert.True(t, resp.Success)
		assert.JSONEq(t, `{"result":"2"}`, string(resp.Body))
	})

	t.Run("event", func(t *testing.T) {
		body := []byte(`{"seq":3,"type":"event","event":"stopped","body":{"reason":"breakpoint"}}`)

		msg, decodeErr := DecodeMessage(body)
		require.NoError(t, decodeErr)

		evt, ok := msg.(*Event)
		require.True(t, ok)
		assert.Equal(t, "stopped", evt.Event)
		assert.JSONEq(t, `{"reason":"breakpoint"}`, string(evt.Body))
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, decodeErr := DecodeMessage([]byte(`{"seq":1,"type":`))
		assert.Error(t, decodeErr)
	})

	t.Run("unknown type tag", func(t *testing.T) {
		_, decodeErr := DecodeMessage([]byte(`{"seq":1,"type":"notify"}`))
		require.Error(t, decodeErr)
		assert.Contains(t, decodeErr.Error(), "notify")
	})
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	req := &Request{Command: "evaluate", Arguments: []byte(`{"expr":"1+1"}`)}
	req.Seq = 1
	req.Type = TypeRequest

	frame, encodeErr := EncodeFrame(req)
	require.NoError(t, encodeErr)

	d := NewDecoder()
	bodies := d.Feed(frame)
	require.Len(t, bodies, 1)

	msg, decodeErr := DecodeMessage(bodies[0])
	require.NoError(t, decodeErr)

	decoded, ok := msg.(*Request)
	require.True(t, ok)
	assert.Equal(t, req.Seq, decoded.Seq)
	assert.Equal(t, req.Type, decoded.Type)
	assert.Equal(t, req.Command, decoded.Command)
	assert.JSONEq(t, string(req.Arguments), string(decoded.Arguments))
}
