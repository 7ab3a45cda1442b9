package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vertextoedge/planetdl/internal/config"
	"github.com/vertextoedge/planetdl/internal/logger"
	"github.com/vertextoedge/planetdl/pkg/planetdl"
)

// globalOptions are shared by every command
type globalOptions struct {
	configPath string
	verbose    bool
}

func newRootCommand() *cobra.Command {
	g := &globalOptions{}
	get := &getOptions{}

	root := &cobra.Command{
		Use:   "planetdl [source] [output|-]",
		Short: "Download OpenStreetMap extracts",
		Long: `planetdl downloads OpenStreetMap extracts: the full planet, continents
and countries, e.g. "planet", "europe" or "europe/belgium".`,
		Version:       planetdl.Version(),
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runGet(cmd, g, get, args)
		},
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to configuration file (default: ./planetdl.yaml)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")
	addGetFlags(root, get)

	root.AddCommand(
		newGetCommand(g),
		newFilenameCommand(),
		newHistoryCommand(g),
		newConfigCommand(g),
		newVersionCommand(),
	)

	return root
}

// loadConfig reads configuration and installs the process logger
func loadConfig(g *globalOptions) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, fail(planetdl.InvalidParameter, fmt.Errorf("failed to load configuration: %w", err))
	}

	level := cfg.Logging.Level
	if g.verbose {
		level = "debug"
	}

	log, err := logger.Init(level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, fail(planetdl.InvalidParameter, fmt.Errorf("failed to initialize logger: %w", err))
	}

	log.Debug("configuration loaded",
		zap.String("config", g.configPath),
		zap.String("version", planetdl.Version()))

	return cfg, log, nil
}
