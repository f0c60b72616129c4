// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/usvc-dev/dapwire/internal/pubsub"
	"github.com/usvc-dev/dapwire/pkg/wire"
)

var (
	// ErrConnClosed is returned when attempting to use a closed connection.
	// Pending request callbacks receive it when the connection is torn down
	// before their response arrives.
	ErrConnClosed = errors.New("connection is closed")

	// ErrResponseAlreadySent is returned by SendResponse when the response
	// already carries a nonzero seq, meaning it has been transmitted before.
	// A response must be sent at most once per request.
	ErrResponseAlreadySent = errors.New("response has already been sent")
)

// ConnConfig contains configuration options for a Conn.
type ConnConfig struct {
	// Logger is the logger for the connection. If unset, logging is disabled.
	Logger logr.Logger

	// Meter provides the diagnostic counters for the connection
	// (frames decoded, dropped responses, discarded headers).
	// If nil, a no-op meter is used.
	Meter metric.Meter
}

// Conn implements the protocol transport over an outbound byte sink and a
// push-style inbound byte feed. It owns the outbound sequence counter, the
// pending-request table and the receive buffer for one connection; multiple
// connections are fully independent.
//
// Inbound bytes must be fed from a single goroutine (Stream.Run does this).
// Senders may be concurrent; outbound frames are serialized internally and
// written whole, so frames from concurrent senders never interleave.
type Conn struct {
	// sink receives encoded outbound frames
	sink io.Writer

	// writeMu serializes frame writes and seq assignment, so seq values
	// appear on the wire in increasing order
	writeMu sync.Mutex

	// seq generates outbound sequence numbers, starting at 1
	seq *sequenceCounter

	// pending tracks requests awaiting responses
	pending *pendingRequestMap

	// dec reassembles inbound frames from arbitrary chunks
	dec *wire.Decoder

	// events fans out inbound events to subscribers
	events *pubsub.SubscriptionSet[*wire.Event]

	// requests fans out inbound requests to subscribers
	requests *pubsub.SubscriptionSet[*wire.Request]

	// decodeErrs fans out per-message payload decode errors to subscribers
	decodeErrs *pubsub.SubscriptionSet[error]

	metrics *connMetrics
	log     logr.Logger

	// closed indicates whether the connection has been torn down
	closed bool
	mu     sync.Mutex
}

// NewConn creates a connection writing outbound frames to sink.
func NewConn(sink io.Writer, config ConnConfig) *Conn {
	log := config.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	meter := config.Meter
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("dapwire")
	}

	c := &Conn{
		sink:       sink,
		seq:        newSequenceCounter(),
		pending:    newPendingRequestMap(),
		dec:        wire.NewDecoder(),
		events:     pubsub.NewSubscriptionSet[*wire.Event](),
		requests:   pubsub.NewSubscriptionSet[*wire.Request](),
		decodeErrs: pubsub.NewSubscriptionSet[error](),
		metrics:    newConnMetrics(meter),
		log:        log,
	}

	c.dec.OnHeaderDiscarded = func(header []byte) {
		c.metrics.headersDiscarded.Add(context.Background(), 1)
		c.log.V(1).Info("Discarded header block without Content-Length", "header", string(header))
	}

	return c
}

// SendRequest sends a request with the given command and arguments and
// returns the sequence number assigned to it. Empty or nil arguments are
// omitted from the wire entirely. If cb is non-nil it is registered in the
// pending-request table and fires exactly once: with the matching response,
// or with ErrConnClosed if the connection is closed first.
func (c *Conn) SendRequest(command string, args any, cb ResponseCallback) (int, error) {
	rawArgs, marshalErr := marshalArguments(args)
	if marshalErr != nil {
		return 0, marshalErr
	}

	req := &wire.Request{Command: command, Arguments: rawArgs}
	req.Type = wire.TypeRequest

	seq, sendErr := c.send(req, func(seq int) {
		if cb != nil {
			c.pending.Add(seq, cb)
		}
	})
	if sendErr != nil {
		if cb != nil {
			// The frame never made it out; unregister the callback.
			c.pending.Take(seq)
		}
		return 0, sendErr
	}

	c.log.V(1).Info("Sent request", "command", command, "seq", seq)
	return seq, nil
}

// Call sends a request and blocks until its response arrives, the context
// is cancelled, or the connection is closed. On cancellation the pending
// entry stays registered; the late response, if any, is simply discarded.
func (c *Conn) Call(ctx context.Context, command string, args any) (*wire.Response, error) {
	type outcome struct {
		resp *wire.Response
		err  error
	}

	resultChan := make(chan outcome, 1)
	_, sendErr := c.SendRequest(command, args, func(resp *wire.Response, cbErr error) {
		resultChan <- outcome{resp: resp, err: cbErr}
	})
	if sendErr != nil {
		return nil, sendErr
	}

	select {
	case result := <-resultChan:
		return result.resp, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendResponse sends a response to a previously received request. The
// response must carry the request_seq of the request it answers and must
// not have been sent before: a nonzero seq means it already went out once,
// and the send is rejected with ErrResponseAlreadySent.
func (c *Conn) SendResponse(resp *wire.Response) error {
	if resp.Seq != 0 {
		return fmt.Errorf("%w: response to request %d carries seq %d", ErrResponseAlreadySent, resp.RequestSeq, resp.Seq)
	}

	resp.Type = wire.TypeResponse

	seq, sendErr := c.send(resp, nil)
	if sendErr != nil {
		return sendErr
	}

	c.log.V(1).Info("Sent response", "command", resp.Command, "seq", seq, "requestSeq", resp.RequestSeq)
	return nil
}

// SendEvent sends an event with the given name and optional body.
func (c *Conn) SendEvent(name string, body any) error {
	rawBody, marshalErr := marshalArguments(body)
	if marshalErr != nil {
		return marshalErr
	}

	evt := &wire.Event{Event: name, Body: rawBody}
	evt.Type = wire.TypeEvent

	seq, sendErr := c.send(evt, nil)
	if sendErr != nil {
		return sendErr
	}

	c.log.V(1).Info("Sent event", "event", name, "seq", seq)
	return nil
}

// send assigns the next sequence number to msg and writes the frame.
// beforeWrite, if non-nil, runs after seq assignment but before the frame
// is written, still under the write lock, so a response cannot be
// dispatched before its callback is registered.
//
// The closed check happens under the write lock and Close waits for the
// write lock before draining the pending table, so a callback registered
// here is always visible to the drain: it either fires with a response or
// with ErrConnClosed, never neither.
func (c *Conn) send(msg wire.Message, beforeWrite func(seq int)) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0, ErrConnClosed
	}

	seq := c.seq.Next()
	msg.GetProtocolMessage().Seq = seq

	if beforeWrite != nil {
		beforeWrite(seq)
	}

	if writeErr := wire.WriteMessage(c.sink, msg); writeErr != nil {
		return seq, writeErr
	}

	return seq, nil
}

// Feed pushes inbound bytes into the connection. Complete frames are
// decoded and dispatched in arrival order before Feed returns; incomplete
// trailing bytes are buffered for the next call. Feed must not be called
// concurrently with itself.
//
// No inbound condition is fatal: malformed headers are skipped, malformed
// payloads are reported to error subscribers, and unmatched responses are
// dropped. Framing continues in every case.
func (c *Conn) Feed(p []byte) {
	for _, body := range c.dec.Feed(p) {
		msg, decodeErr := wire.DecodeMessage(body)
		if decodeErr != nil {
			c.metrics.decodeErrors.Add(context.Background(), 1)
			c.log.V(1).Info("Failed to decode message body", "error", decodeErr.Error())
			c.decodeErrs.Notify(decodeErr)
			continue
		}

		c.metrics.framesDecoded.Add(context.Background(), 1)
		c.dispatch(msg)
	}
}

// dispatch routes one decoded message by kind.
func (c *Conn) dispatch(msg wire.Message) {
	switch m := msg.(type) {
	case *wire.Event:
		c.log.V(1).Info("Received event", "event", m.Event, "seq", m.Seq)
		c.events.Notify(m)

	case *wire.Response:
		cb := c.pending.Take(m.RequestSeq)
		if cb == nil {
			// Legitimate race: the request may have been abandoned locally
			// before its response arrived. Not a fault condition.
			c.metrics.responsesDropped.Add(context.Background(), 1)
			c.log.V(1).Info("Received response for unknown request", "requestSeq", m.RequestSeq)
			return
		}
		c.log.V(1).Info("Received response", "command", m.Command, "requestSeq", m.RequestSeq, "success", m.Success)
		cb(m, nil)

	case *wire.Request:
		c.log.V(1).Info("Received request", "command", m.Command, "seq", m.Seq)
		c.requests.Notify(m)
	}
}

// SubscribeEvents registers sink to receive inbound events in decode order.
func (c *Conn) SubscribeEvents(sink chan<- *wire.Event) *pubsub.Subscription[*wire.Event] {
	return c.events.Subscribe(sink)
}

// SubscribeRequests registers sink to receive inbound requests in decode
// order. The receiver is responsible for eventually calling SendResponse
// with a response whose request_seq matches.
func (c *Conn) SubscribeRequests(sink chan<- *wire.Request) *pubsub.Subscription[*wire.Request] {
	return c.requests.Subscribe(sink)
}

// SubscribeErrors registers sink to receive payload decode errors.
func (c *Conn) SubscribeErrors(sink chan<- error) *pubsub.Subscription[error] {
	return c.decodeErrs.Subscribe(sink)
}

// PendingRequests returns the number of requests awaiting a response.
func (c *Conn) PendingRequests() int {
	return c.pending.Len()
}

// Close tears down the connection. Outstanding request callbacks are failed
// exactly once with ErrConnClosed and all subscriptions are cancelled.
// Close waits for any in-flight send to finish before draining, so a send
// racing Close either completes (and its callback is failed by the drain)
// or returns ErrConnClosed without registering anything.
// Close is idempotent; subsequent sends return ErrConnClosed.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	// Senders that already passed the closed check hold the write lock
	// until their callback is registered; wait for them so the drain
	// below sees every registered callback.
	c.writeMu.Lock()
	c.writeMu.Unlock() //nolint:staticcheck // empty critical section is the barrier

	c.pending.DrainWithError(ErrConnClosed)

	c.events.CancelAll()
	c.requests.CancelAll()
	c.decodeErrs.CancelAll()

	return nil
}

// marshalArguments serializes an arbitrary payload, mapping absent or empty
// payloads (nil, empty struct, empty map) to nil so the field is omitted
// from the wire entirely.
func marshalArguments(args any) (json.RawMessage, error) {
	if args == nil {
		return nil, nil
	}

	raw, marshalErr := json.Marshal(args)
	if marshalErr != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", marshalErr)
	}

	if s := string(raw); s == "null" || s == "{}" {
		return nil, nil
	}

	return raw, nil
}
