package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/conductor/internal/version"
	"github.com/GoCodeAlone/conductor/mcpserver"
)

func newMCPCmd(flags *rootFlags) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve conductor tools over MCP stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if seed {
				cfg.Organization.Seed = true
			}
			// stdout carries the protocol.
			logger := newLogger(os.Stderr, cfg.LogLevel)

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck
			return mcpserver.Serve(a.svc, version.Version)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "start with the demo team")
	return cmd
}
