// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/usvc-dev/dapwire/pkg/transport"
	"github.com/usvc-dev/dapwire/pkg/wire"
)

type probeOptions struct {
	address      string
	socket       string
	initTimeout  time.Duration
	followEvents bool
	adapterID    string
	clientID     string
}

// NewProbeCommand creates the 'probe' command, which connects to a running
// debug adapter, performs an initialize handshake, and optionally streams
// the adapter's events to stdout until interrupted.
func NewProbeCommand() (*cobra.Command, error) {
	opts := &probeOptions{}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Connect to a debug adapter and exercise the wire protocol",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProbe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.address, "address", "", "TCP address of the debug adapter (host:port)")
	cmd.Flags().StringVar(&opts.socket, "socket", "", "Unix domain socket path of the debug adapter")
	cmd.Flags().DurationVar(&opts.initTimeout, "init-timeout", 10*time.Second, "How long to wait for the initialize response")
	cmd.Flags().BoolVar(&opts.followEvents, "follow", false, "Keep the connection open and print adapter events as they arrive")
	cmd.Flags().StringVar(&opts.adapterID, "adapter-id", "dapwire", "Value for the adapterID initialize argument")
	cmd.Flags().StringVar(&opts.clientID, "client-id", "dapwire-probe", "Value for the clientID initialize argument")
	cmd.MarkFlagsMutuallyExclusive("address", "socket")

	return cmd, nil
}

func runProbe(cmd *cobra.Command, opts *probeOptions) error {
	if opts.address == "" && opts.socket == "" {
		return fmt.Errorf("one of --address or --socket is required")
	}

	ctx := cmd.Context()
	log := Log().Logger.WithName("probe")

	config := transport.ConnConfig{Logger: log}

	var stream *transport.Stream
	var dialErr error
	if opts.address != "" {
		stream, dialErr = transport.DialTCP(ctx, opts.address, config)
	} else {
		stream, dialErr = transport.DialUnix(ctx, opts.socket, config)
	}
	if dialErr != nil {
		return dialErr
	}
	defer stream.Close()

	conn := stream.Conn()

	// Subscribe before pumping so no early event is missed.
	eventChan := make(chan *wire.Event, 64)
	eventSub := conn.SubscribeEvents(eventChan)
	defer eventSub.Cancel()

	pumpDone := make(chan error, 1)
	go func() {
		pumpDone <- stream.Run(ctx)
	}()

	initCtx, cancelInit := context.WithTimeout(ctx, opts.initTimeout)
	defer cancelInit()

	initArgs := map[string]any{
		"adapterID":       opts.adapterID,
		"clientID":        opts.clientID,
		"linesStartAt1":   true,
		"columnsStartAt1": true,
	}

	resp, callErr := conn.Call(initCtx, "initialize", initArgs)
	if callErr != nil {
		return fmt.Errorf("initialize request failed: %w", callErr)
	}

	log.Info("Adapter responded to initialize", "success", resp.Success)
	printJSON(resp)

	if !opts.followEvents {
		return nil
	}

	for {
		select {
		case evt, ok := <-eventChan:
			if !ok {
				return nil
			}
			printJSON(evt)
		case pumpErr := <-pumpDone:
			return pumpErr
		case <-ctx.Done():
			return nil
		}
	}
}

func printJSON(v any) {
	encoded, marshalErr := json.Marshal(v)
	if marshalErr != nil {
		fmt.Fprintf(os.Stderr, "failed to render message: %v\n", marshalErr)
		return
	}
	fmt.Fprintln(os.Stdout, string(encoded))
}
