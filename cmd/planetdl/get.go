package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vertextoedge/planetdl/internal/adapter/blobstore"
	"github.com/vertextoedge/planetdl/internal/adapter/filesystem"
	"github.com/vertextoedge/planetdl/internal/service/server"
	"github.com/vertextoedge/planetdl/pkg/planetdl"
)

// getOptions are the flags of the get command
type getOptions struct {
	dryRun    bool
	force     bool
	noClobber bool
	retries   int
	progress  bool
}

func addGetFlags(cmd *cobra.Command, o *getOptions) {
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "Print the resolved URL and destination without downloading")
	cmd.Flags().BoolVarP(&o.force, "force", "f", false, "Overwrite an existing destination without asking")
	cmd.Flags().BoolVarP(&o.noClobber, "no-clobber", "n", false, "Fail if the destination already exists")
	cmd.Flags().IntVar(&o.retries, "retries", 0, "Retry network failures this many times with exponential backoff")
	cmd.Flags().BoolVar(&o.progress, "progress", true, "Show a progress line on stderr")
}

func newGetCommand(g *globalOptions) *cobra.Command {
	o := &getOptions{}
	cmd := &cobra.Command{
		Use:   "get <source> [output|-]",
		Short: "Download an extract",
		Long: `Download an extract. Without an output the canonical filename is used
(e.g. belgium-latest.osm.pbf). "-" streams to standard output; a bucket URL
such as s3://bucket/key, gs://bucket/key or file:///dir/key uploads the file.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, g, o, args)
		},
	}
	addGetFlags(cmd, o)
	return cmd
}

func runGet(cmd *cobra.Command, g *globalOptions, o *getOptions, args []string) error {
	if o.force && o.noClobber {
		return fail(planetdl.InvalidParameter, errors.New("--force and --no-clobber are mutually exclusive"))
	}
	if o.retries < 0 {
		return fail(planetdl.InvalidParameter, errors.New("--retries must not be negative"))
	}

	cfg, log, err := loadConfig(g)
	if err != nil {
		return err
	}

	source := args[0]
	output := ""
	if len(args) > 1 {
		output = args[1]
	}

	opts := planetdl.OptionsFromConfig(cfg)
	opts.Logger = log
	if o.noClobber {
		opts.Overwrite = string(filesystem.OverwriteNever)
	}
	if o.force {
		opts.Overwrite = string(filesystem.OverwriteTruncate)
	}

	client, err := planetdl.NewClient(opts)
	if err != nil {
		return fail(planetdl.UnknownError, err)
	}
	defer client.Close()

	target, err := client.Resolve(source)
	if err != nil {
		return fail(planetdl.InvalidParameter, err)
	}
	dest, err := client.Destination(source, output)
	if err != nil {
		return fail(planetdl.InvalidParameter, err)
	}

	stderr := cmd.ErrOrStderr()

	if o.dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "source:      %s\nurl:         %s\ndestination: %s\n", source, target.URL, dest)
		return nil
	}

	toStdout := dest == filesystem.StdoutDest
	if g.verbose {
		fmt.Fprintf(stderr, "Downloading %s (%s) from %s to %s\n", source, target.Tier, target.URL, dest)
	}

	if !toStdout && !blobstore.IsURL(dest) && !o.force && opts.Overwrite != string(filesystem.OverwriteNever) && filesystem.Exists(dest) {
		if isTerminal(os.Stdin) {
			ok, err := confirm(cmd.InOrStdin(), stderr, fmt.Sprintf("%s already exists. Overwrite?", dest))
			if err != nil {
				return fail(planetdl.IOError, err)
			}
			if !ok {
				fmt.Fprintln(stderr, "Aborted.")
				return nil
			}
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.BindAddr != "" {
		srv := server.New(&server.Config{
			BindAddr:     cfg.Metrics.BindAddr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}, client.Journal(), client.Metrics(), log.Named("server"))
		go func() {
			if err := srv.Start(); err != nil {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Stop(shutdownCtx)
		}()
	}

	printer := newProgressPrinter(stderr, 250*time.Millisecond, o.progress)

	retries := o.retries
	if toStdout && retries > 0 {
		// Bytes already written to a pipe cannot be taken back
		log.Warn("retries are disabled when streaming to stdout")
		retries = 0
	}

	start := time.Now()
	result, err := downloadWithRetry(ctx, retries, log, func(ctx context.Context) (planetdl.Result, error) {
		printer.reset()
		return client.DownloadContext(ctx, source, dest, printer.update)
	})
	printer.finish()

	if result != planetdl.Success {
		if ctx.Err() != nil {
			return fail(result, fmt.Errorf("download interrupted: %w", err))
		}
		return fail(result, err)
	}

	if !toStdout {
		fmt.Fprintf(stderr, "Saved %s (%s) in %s\n", dest, humanize.IBytes(printer.downloaded()), time.Since(start).Round(time.Millisecond))
	}
	return nil
}

// downloadWithRetry repeats attempt up to retries more times while it fails
// with a network error. Every other result is final.
func downloadWithRetry(ctx context.Context, retries int, log *zap.Logger,
	attempt func(context.Context) (planetdl.Result, error)) (planetdl.Result, error) {

	// backoff treats a zero retry limit as unlimited
	if retries <= 0 {
		result, err := attempt(ctx)
		if result != planetdl.Success && err == nil {
			err = result.Err()
		}
		return result, err
	}

	var result planetdl.Result
	op := func() error {
		var err error
		result, err = attempt(ctx)
		switch {
		case result == planetdl.Success:
			return nil
		case result == planetdl.NetworkError && ctx.Err() == nil:
			if err == nil {
				err = result.Err()
			}
			return err
		default:
			if err == nil {
				err = result.Err()
			}
			return backoff.Permanent(err)
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = time.Minute
	policy.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx)

	err := backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		log.Warn("download failed, retrying",
			zap.Error(err),
			zap.Duration("wait", wait))
	})
	if result == planetdl.Success {
		return result, nil
	}
	return result, err
}

func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
