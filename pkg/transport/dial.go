// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/usvc-dev/dapwire/pkg/resiliency"
)

// DialTCP establishes a TCP connection to the specified address, retrying
// with exponential back-off until the connection succeeds or ctx is done.
// Retrying covers the common case of connecting to an adapter that is still
// starting up and not yet listening.
func DialTCP(ctx context.Context, address string, config ConnConfig) (*Stream, error) {
	netConn, dialErr := dial(ctx, "tcp", address)
	if dialErr != nil {
		return nil, fmt.Errorf("failed to dial TCP %s: %w", address, dialErr)
	}

	return NewNetStream(netConn, config), nil
}

// DialUnix establishes a Unix domain socket connection to the specified
// path, retrying with exponential back-off until it succeeds or ctx is done.
func DialUnix(ctx context.Context, path string, config ConnConfig) (*Stream, error) {
	netConn, dialErr := dial(ctx, "unix", path)
	if dialErr != nil {
		return nil, fmt.Errorf("failed to dial Unix socket %s: %w", path, dialErr)
	}

	return NewNetStream(netConn, config), nil
}

func dial(ctx context.Context, network string, address string) (net.Conn, error) {
	return resiliency.RetryGet(ctx, func() (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, network, address)
	})
}
