// Package transfer streams resolved targets from a source into a sink in
// bounded chunks.
package transfer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vertextoedge/planetdl/internal/domain"
	"github.com/vertextoedge/planetdl/internal/metrics"
	"github.com/vertextoedge/planetdl/internal/port"
)

const (
	// DefaultChunkSize is the per-session buffer size
	DefaultChunkSize = 64 * 1024

	// MaxChunkSize bounds the per-session buffer
	MaxChunkSize = 8 * 1024 * 1024

	tracerName = "github.com/vertextoedge/planetdl/internal/service/transfer"
)

// Config contains transfer engine configuration
type Config struct {
	ChunkSize        int
	ProgressInterval time.Duration
	SpaceCheck       bool
}

// DefaultConfig returns default engine configuration
func DefaultConfig() *Config {
	return &Config{
		ChunkSize:  DefaultChunkSize,
		SpaceCheck: true,
	}
}

// Engine creates and runs transfer sessions. It is safe for concurrent use;
// sessions share nothing but the source, sink factory and observers.
type Engine struct {
	config  *Config
	source  port.Source
	sinks   port.SinkFactory
	space   port.SpaceChecker
	journal port.TransferJournal
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewEngine creates a new Engine
func NewEngine(cfg *Config, source port.Source, sinks port.SinkFactory, logger *zap.Logger) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkSize > MaxChunkSize {
		cfg.ChunkSize = MaxChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		config: cfg,
		source: source,
		sinks:  sinks,
		tracer: otel.Tracer(tracerName),
		logger: logger,
	}
}

// SetSpaceChecker enables the free space preflight check
func (e *Engine) SetSpaceChecker(s port.SpaceChecker) {
	e.space = s
}

// SetJournal records every session in j
func (e *Engine) SetJournal(j port.TransferJournal) {
	e.journal = j
}

// SetMetrics records every session in m
func (e *Engine) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// NewSession prepares a session for target. reporter may be nil.
func (e *Engine) NewSession(target domain.Target, dest string, reporter port.Reporter) *Session {
	return &Session{
		id:       uuid.New().String(),
		engine:   e,
		target:   target,
		dest:     dest,
		reporter: reporter,
		state:    domain.NewTransferState(),
	}
}

// Download runs a new session to completion
func (e *Engine) Download(ctx context.Context, target domain.Target, dest string, reporter port.Reporter) domain.Outcome {
	return e.NewSession(target, dest, reporter).Run(ctx)
}
