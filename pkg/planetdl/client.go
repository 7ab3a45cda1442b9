package planetdl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/planetdl/internal/adapter/blobstore"
	"github.com/vertextoedge/planetdl/internal/adapter/filesystem"
	"github.com/vertextoedge/planetdl/internal/adapter/httpsource"
	"github.com/vertextoedge/planetdl/internal/adapter/sqlite"
	"github.com/vertextoedge/planetdl/internal/config"
	"github.com/vertextoedge/planetdl/internal/domain"
	"github.com/vertextoedge/planetdl/internal/metrics"
	"github.com/vertextoedge/planetdl/internal/port"
	"github.com/vertextoedge/planetdl/internal/resolver"
	"github.com/vertextoedge/planetdl/internal/service/scheduler"
	"github.com/vertextoedge/planetdl/internal/service/transfer"
)

// ProgressFunc receives the bytes written so far and the total size, or 0
// when the size is unknown. It is called on the transfer's goroutine.
type ProgressFunc func(downloaded, total uint64)

// Options configures a Client. The zero value downloads from the public
// mirrors with default settings.
type Options struct {
	PlanetURL        string
	GeofabrikBaseURL string

	UserAgent             string
	ConnectTimeout        time.Duration
	ResponseHeaderTimeout time.Duration
	IdleConnTimeout       time.Duration
	BufferSize            int
	MaxBytesPerSecond     int64
	HTTP3                 bool
	SkipTLSVerify         bool

	ChunkSize         int
	ProgressInterval  time.Duration
	Workers           int
	Overwrite         string // "truncate" (default) or "never"
	DisableSpaceCheck bool
	OutputDir         string

	// JournalPath enables the SQLite transfer journal
	JournalPath string

	EnableMetrics bool

	Logger *zap.Logger
}

// Target describes where a source identifier is downloaded from
type Target struct {
	Source   string
	Tier     string
	URL      string
	Filename string
}

// Client downloads extracts. All methods are safe for concurrent use.
type Client struct {
	opts      Options
	resolver  *resolver.Resolver
	source    *httpsource.Source
	blobs     *blobstore.Factory
	engine    *transfer.Engine
	scheduler *scheduler.Scheduler
	journal   *sqlite.Store
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewClient creates an independent client with its own worker pool and
// connection pool. Call Close when done.
func NewClient(opts Options) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = UserAgent()
	}
	switch filesystem.OverwritePolicy(opts.Overwrite) {
	case "", filesystem.OverwriteTruncate, filesystem.OverwriteNever:
	default:
		return nil, fmt.Errorf("%w: unknown overwrite policy %q", domain.ErrInvalidInput, opts.Overwrite)
	}
	if opts.ChunkSize < 0 || opts.ChunkSize > transfer.MaxChunkSize {
		return nil, fmt.Errorf("%w: chunk size must be between 1 and %d bytes", domain.ErrInvalidInput, transfer.MaxChunkSize)
	}

	logger := opts.Logger

	c := &Client{
		opts:   opts,
		logger: logger,
		resolver: resolver.New(&resolver.Config{
			PlanetURL:        opts.PlanetURL,
			GeofabrikBaseURL: opts.GeofabrikBaseURL,
		}),
	}

	if opts.JournalPath != "" {
		store, err := sqlite.Open(opts.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to open journal: %w", domain.ErrIO, err)
		}
		c.journal = store
	}
	if opts.EnableMetrics {
		c.metrics = metrics.New()
	}

	c.source = httpsource.New(&httpsource.Config{
		UserAgent:             opts.UserAgent,
		ConnectTimeout:        opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
		IdleConnTimeout:       opts.IdleConnTimeout,
		BufferSize:            opts.BufferSize,
		MaxBytesPerSecond:     opts.MaxBytesPerSecond,
		HTTP3:                 opts.HTTP3,
		SkipTLSVerify:         opts.SkipTLSVerify,
	}, logger.Named("http"))

	policy := filesystem.OverwritePolicy(opts.Overwrite)
	c.blobs = blobstore.NewFactory(policy != filesystem.OverwriteNever, logger.Named("blob"))
	router := &sinkRouter{
		files: filesystem.NewManager(policy, logger.Named("fs")),
		blobs: c.blobs,
	}

	c.engine = transfer.NewEngine(&transfer.Config{
		ChunkSize:        opts.ChunkSize,
		ProgressInterval: opts.ProgressInterval,
		SpaceCheck:       !opts.DisableSpaceCheck,
	}, c.source, router, logger.Named("transfer"))
	c.engine.SetSpaceChecker(router)
	if c.journal != nil {
		c.engine.SetJournal(c.journal)
	}
	c.engine.SetMetrics(c.metrics)

	c.scheduler = scheduler.New(&scheduler.Config{Workers: opts.Workers}, logger.Named("scheduler"))
	c.scheduler.SetMetrics(c.metrics)

	return c, nil
}

// OptionsFromConfig converts loaded configuration into client options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PlanetURL:             cfg.Sources.PlanetURL,
		GeofabrikBaseURL:      cfg.Sources.GeofabrikBaseURL,
		UserAgent:             cfg.HTTP.UserAgent,
		ConnectTimeout:        cfg.HTTP.GetConnectTimeout(),
		ResponseHeaderTimeout: cfg.HTTP.GetResponseHeaderTimeout(),
		IdleConnTimeout:       cfg.HTTP.GetIdleConnTimeout(),
		BufferSize:            cfg.HTTP.GetBufferSize(),
		MaxBytesPerSecond:     cfg.HTTP.MaxBytesPerSecond,
		HTTP3:                 cfg.HTTP.HTTP3,
		SkipTLSVerify:         cfg.HTTP.SkipTLSVerify,
		ChunkSize:             cfg.Transfer.GetChunkSize(),
		ProgressInterval:      cfg.Progress.GetMinInterval(),
		Workers:               cfg.Transfer.Workers,
		Overwrite:             cfg.Transfer.Overwrite,
		DisableSpaceCheck:     !cfg.Transfer.SpaceCheck,
		OutputDir:             cfg.Transfer.OutputDir,
		JournalPath:           cfg.Journal.Path,
		EnableMetrics:         cfg.Metrics.BindAddr != "",
	}
}

// LoadOptions reads configuration from path (or the default locations when
// empty), .env files and PLANETDL_* environment variables.
func LoadOptions(path string) (Options, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return Options{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return OptionsFromConfig(cfg), nil
}

// Close stops the worker pool and releases connections and the journal
func (c *Client) Close() error {
	c.scheduler.Close()

	var errs []error
	if err := c.source.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.blobs.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.journal != nil {
		if err := c.journal.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Resolve maps a source identifier to its download target without any
// network access.
func (c *Client) Resolve(source string) (Target, error) {
	t, err := c.resolver.Resolve(source)
	if err != nil {
		return Target{}, err
	}
	return Target{
		Source:   t.Source,
		Tier:     string(t.Tier),
		URL:      t.URL,
		Filename: t.Filename,
	}, nil
}

// Destination returns where a download of source to dest would be written.
// An empty dest means the canonical filename in the output directory; an
// existing directory receives the canonical filename.
func (c *Client) Destination(source, dest string) (string, error) {
	t, err := c.resolver.Resolve(source)
	if err != nil {
		return "", err
	}
	return c.destination(t, dest), nil
}

func (c *Client) destination(t domain.Target, dest string) string {
	switch {
	case dest == "":
		if c.opts.OutputDir == "" {
			return t.Filename
		}
		return filepath.Join(c.opts.OutputDir, t.Filename)
	case dest == filesystem.StdoutDest || blobstore.IsURL(dest):
		return dest
	}
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		return filepath.Join(dest, t.Filename)
	}
	return dest
}

// Download fetches source into dest and blocks until it has finished
func (c *Client) Download(source, dest string) Result {
	r, _ := c.DownloadContext(context.Background(), source, dest, nil)
	return r
}

// DownloadWithProgress is Download with a progress callback. A nil
// callback behaves exactly like Download.
func (c *Client) DownloadWithProgress(source, dest string, onProgress func(downloaded, total uint64)) Result {
	r, _ := c.DownloadContext(context.Background(), source, dest, onProgress)
	return r
}

// DownloadContext is Download with cancellation and the underlying error.
// Cancelling ctx stops the transfer between chunks and returns UnknownError.
func (c *Client) DownloadContext(ctx context.Context, source, dest string, onProgress ProgressFunc) (Result, error) {
	target, err := c.resolver.Resolve(source)
	if err != nil {
		return InvalidParameter, err
	}
	auto := dest == ""
	dest = c.destination(target, dest)
	if auto && c.opts.OutputDir != "" {
		if err := filesystem.EnsureDir(dest); err != nil {
			return IOError, fmt.Errorf("%w: %w", domain.ErrIO, err)
		}
	}

	var reporter port.Reporter
	if onProgress != nil {
		reporter = port.ReporterFunc(onProgress)
	}

	outcome := c.scheduler.Run(ctx, func(ctx context.Context) domain.Outcome {
		return c.engine.Download(ctx, target, dest, reporter)
	})
	return MapOutcome(outcome), outcome.Err
}

// GetFilename returns the canonical filename for source
func (c *Client) GetFilename(source string) (string, error) {
	return resolver.Filename(source)
}

// Journal returns the transfer journal, or nil when it is disabled
func (c *Client) Journal() port.TransferJournal {
	if c.journal == nil {
		return nil
	}
	return c.journal
}

// Metrics returns the client's metrics, or nil when they are disabled
func (c *Client) Metrics() *metrics.Metrics {
	return c.metrics
}
