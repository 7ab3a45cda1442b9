package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vertextoedge/planetdl/internal/adapter/sqlite"
	"github.com/vertextoedge/planetdl/pkg/planetdl"
)

func newFilenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "filename <source>",
		Short: "Print the filename a source is saved under",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := planetdl.GetFilename(args[0])
			if err != nil {
				return fail(planetdl.InvalidParameter, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), planetdl.Version())
		},
	}
}

func newConfigCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(g)
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fail(planetdl.IOError, fmt.Errorf("failed to encode configuration: %w", err))
			}
			return enc.Close()
		},
	}
}

func newHistoryCommand(g *globalOptions) *cobra.Command {
	var limit int
	var prune time.Duration

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent transfers from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fail(planetdl.InvalidParameter, errors.New("--limit must be positive"))
			}

			cfg, _, err := loadConfig(g)
			if err != nil {
				return err
			}
			if cfg.Journal.Path == "" {
				return fail(planetdl.InvalidParameter, errors.New("the journal is disabled; set journal.path or PLANETDL_JOURNAL_PATH"))
			}

			store, err := sqlite.Open(cfg.Journal.Path)
			if err != nil {
				return fail(planetdl.IOError, fmt.Errorf("failed to open journal: %w", err))
			}
			defer store.Close()

			if prune > 0 {
				n, err := store.Prune(prune)
				if err != nil {
					return fail(planetdl.IOError, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Pruned %d transfers older than %s\n", n, prune)
			}

			records, err := store.Recent(limit)
			if err != nil {
				return fail(planetdl.IOError, fmt.Errorf("failed to read journal: %w", err))
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tSOURCE\tOUTCOME\tSIZE\tDURATION\tDESTINATION")
			for _, r := range records {
				duration := "-"
				if d := r.Duration(); d > 0 {
					duration = d.Round(time.Second).String()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					humanize.Time(r.StartedAt), r.Source, r.Outcome,
					humanize.IBytes(r.BytesWritten), duration, r.Destination)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Number of transfers to show")
	cmd.Flags().DurationVar(&prune, "prune", 0, "Delete finished transfers older than this first, e.g. 720h")
	return cmd
}
