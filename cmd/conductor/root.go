package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/conductor/config"
	"github.com/GoCodeAlone/conductor/internal/version"
)

type rootFlags struct {
	configPath string
	envFiles   []string
	provider   string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "conductor",
		Short:         "conductor assigns tasks to workers with help from a language model",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to YAML config file")
	root.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", []string{".env"}, "dotenv files to load")
	root.PersistentFlags().StringVar(&flags.provider, "provider", "", "override provider type (anthropic|openai|mock)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log level")

	root.AddCommand(
		newServeCmd(flags),
		newMCPCmd(flags),
		newDemoCmd(flags),
		newClientCmd(),
		newVersionCmd(),
	)
	return root
}

// load resolves the effective configuration: defaults, then the config
// file, then dotenv and environment, then flags.
func (f *rootFlags) load() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := config.LoadDotEnv(f.envFiles...); err != nil {
		return nil, err
	}
	if f.provider != "" {
		cfg.Provider.Type = f.provider
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "conductor %s\n", version.String())
		},
	}
}
