// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package transport

import (
	"go.opentelemetry.io/otel/metric"
)

// connMetrics holds the diagnostic counters for one connection. The wire
// protocol swallows unmatched responses and headers without a Content-Length
// token by design; these counters make the drops observable to operators.
type connMetrics struct {
	framesDecoded    metric.Int64Counter
	decodeErrors     metric.Int64Counter
	responsesDropped metric.Int64Counter
	headersDiscarded metric.Int64Counter
}

func newConnMetrics(meter metric.Meter) *connMetrics {
	return &connMetrics{
		framesDecoded:    newInt64Counter(meter, "dapwire_frames_decoded", "Number of complete frames decoded from the inbound stream"),
		decodeErrors:     newInt64Counter(meter, "dapwire_decode_errors", "Number of well-framed bodies that failed JSON decoding"),
		responsesDropped: newInt64Counter(meter, "dapwire_responses_dropped", "Number of responses dropped because no request was pending for their request_seq"),
		headersDiscarded: newInt64Counter(meter, "dapwire_headers_discarded", "Number of header blocks discarded for lacking a Content-Length token"),
	}
}

func newInt64Counter(meter metric.Meter, name string, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(
		name,
		metric.WithDescription(description),
		metric.WithUnit("1"), // dimensionless
	)
	if err != nil {
		panic(err)
	}
	return counter
}
