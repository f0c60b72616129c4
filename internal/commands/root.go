// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/usvc-dev/dapwire/pkg/logger"
)

var (
	rootCmdLogger *logger.Logger
)

func NewRootCmd() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "dapwire",
		Short: "Wire-level tooling for Debug Adapter Protocol connections",
		Long: `dapwire speaks the Debug Adapter Protocol wire format: Content-Length
framed JSON messages with sequence-numbered request/response correlation.

It is useful for poking at debug adapters directly, without an editor in
the way.`,
		SilenceUsage: true,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			rootCmdLogger.Flush()
		},
	}

	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	var err error
	var cmd *cobra.Command

	if cmd, err = NewProbeCommand(); cmd != nil {
		rootCmd.AddCommand(cmd)
	} else {
		return nil, fmt.Errorf("could not set up 'probe' command: %w", err)
	}

	rootCmdLogger = logger.New("dapwire")
	rootCmdLogger.AddLevelFlag(rootCmd.PersistentFlags())

	return rootCmd, nil
}

// Log returns the logger shared by all commands.
func Log() *logger.Logger {
	return rootCmdLogger
}
