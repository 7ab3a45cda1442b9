package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vertextoedge/planetdl/internal/domain"
	"github.com/vertextoedge/planetdl/internal/port"
	"github.com/vertextoedge/planetdl/internal/resolver"
)

// Session is a single attempt to move one target into one destination.
// Run may be called once.
type Session struct {
	id       string
	engine   *Engine
	target   domain.Target
	dest     string
	reporter port.Reporter
	state    *domain.TransferState
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// State returns the live transfer state. It may be read from any goroutine.
func (s *Session) State() *domain.TransferState {
	return s.state
}

// Run executes the session and returns its single terminal outcome. The
// context is checked between chunks; cancelling it yields a Cancelled
// outcome. Source and sink are released on every path.
func (s *Session) Run(ctx context.Context) domain.Outcome {
	e := s.engine
	logger := e.logger.With(
		zap.String("session_id", s.id),
		zap.String("source", s.target.Source),
		zap.String("url", s.target.URL),
		zap.String("dest", s.dest))

	ctx, span := e.tracer.Start(ctx, "transfer.session", trace.WithAttributes(
		attribute.String("planetdl.session_id", s.id),
		attribute.String("planetdl.source", s.target.Source),
		attribute.String("planetdl.tier", string(s.target.Tier)),
		attribute.String("url.full", s.target.URL),
	))
	defer span.End()

	if err := s.state.TransitionTo(domain.PhaseProbing); err != nil {
		return domain.Outcome{Kind: domain.OutcomeUnknown, Err: err}
	}

	start := time.Now()
	e.metrics.TransferStarted()

	record := &domain.TransferRecord{
		ID:          s.id,
		Source:      s.target.Source,
		URL:         s.target.URL,
		Destination: s.dest,
		TotalBytes:  s.target.ExpectedSize,
		StartedAt:   start,
	}
	if e.journal != nil {
		if err := e.journal.Begin(record); err != nil {
			logger.Warn("failed to record transfer start", zap.Error(err))
		}
	}

	logger.Info("starting transfer")

	outcome := s.run(ctx, logger)
	elapsed := time.Since(start)

	switch outcome.Kind {
	case domain.OutcomeSuccess:
		s.settle(domain.PhaseCompleted, logger)
		span.SetStatus(codes.Ok, "")
		logger.Info("transfer completed",
			zap.Uint64("bytes", outcome.BytesWritten),
			zap.Duration("duration", elapsed))
	case domain.OutcomeCancelled:
		s.settle(domain.PhaseCancelled, logger)
		span.SetStatus(codes.Error, "cancelled")
		logger.Info("transfer cancelled",
			zap.Uint64("bytes", outcome.BytesWritten))
	default:
		s.settle(domain.PhaseFailed, logger)
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, outcome.Kind.String())
		logger.Warn("transfer failed",
			zap.String("outcome", outcome.Kind.String()),
			zap.Uint64("bytes", outcome.BytesWritten),
			zap.Int64("total", s.state.Total()),
			zap.Error(outcome.Err))
	}

	span.SetAttributes(attribute.Int64("planetdl.bytes_written", int64(outcome.BytesWritten)))
	e.metrics.TransferFinished(string(s.target.Tier), outcome.Kind.String(), outcome.BytesWritten, elapsed)

	if e.journal != nil {
		record.TotalBytes = s.state.Total()
		record.Finish(outcome)
		if err := e.journal.Finish(record); err != nil {
			logger.Warn("failed to record transfer outcome", zap.Error(err))
		}
	}

	return outcome
}

func (s *Session) run(ctx context.Context, logger *zap.Logger) domain.Outcome {
	e := s.engine

	if err := ctx.Err(); err != nil {
		return s.cancelled(err)
	}

	meta, err := e.source.Probe(ctx, s.target.URL)
	if err != nil {
		return s.fail(err)
	}

	s.noteMetadata(ctx, meta, logger)

	total := s.target.ExpectedSize
	if meta.Size >= 0 {
		total = meta.Size
	}
	s.state.SetTotal(total)

	if err := s.checkSpace(total, logger); err != nil {
		return s.fail(err)
	}

	if err := s.state.TransitionTo(domain.PhaseStreaming); err != nil {
		return s.fail(err)
	}

	stream, err := e.source.Open(ctx, s.target.URL)
	if err != nil {
		return s.fail(err)
	}
	defer stream.Body.Close()

	if total < 0 && stream.ContentLength >= 0 {
		total = stream.ContentLength
		s.state.SetTotal(total)
	}

	sink, err := e.sinks.Create(ctx, s.dest)
	if err != nil {
		return s.fail(err)
	}
	committed := false
	defer func() {
		if !committed {
			if err := sink.Abort(); err != nil {
				logger.Debug("failed to abort sink", zap.Error(err))
			}
		}
	}()

	prog := newProgress(s.reporter, e.config.ProgressInterval)
	buf := make([]byte, e.config.ChunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return s.cancelled(err)
		}

		n, rerr := stream.Body.Read(buf)
		if n > 0 {
			w, werr := sink.Write(buf[:n])
			if w > 0 {
				prog.update(s.state.Advance(w), total)
			}
			if werr == nil && w < n {
				werr = io.ErrShortWrite
			}
			if werr != nil {
				return s.fail(asIOError("write", werr))
			}
		}

		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if cerr := ctx.Err(); cerr != nil {
				return s.cancelled(cerr)
			}
			return s.fail(asNetworkError("read", rerr))
		}
	}

	downloaded := s.state.Downloaded()
	if total >= 0 && downloaded != uint64(total) {
		return s.fail(domain.NewTransferError(domain.OutcomeNetworkFailure, "read",
			fmt.Errorf("%w: got %d of %d bytes", domain.ErrTruncated, downloaded, total)))
	}

	if err := sink.Commit(); err != nil {
		return s.fail(asIOError("commit", err))
	}
	committed = true

	prog.flush(downloaded, total)
	return domain.SuccessOutcome(downloaded)
}

// noteMetadata records what the probe learned. A Content-Disposition name
// never changes where the file is written; a mismatch is only reported.
func (s *Session) noteMetadata(ctx context.Context, meta *port.SourceMetadata, logger *zap.Logger) {
	logger.Debug("probed source",
		zap.Int64("size", meta.Size),
		zap.Bool("accept_ranges", meta.AcceptRanges),
		zap.String("remote_filename", meta.RemoteFilename))

	if meta.RemoteFilename == "" {
		return
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("planetdl.remote_filename", meta.RemoteFilename))
	if meta.RemoteFilename != s.target.Filename {
		logger.Warn("mirror names the file differently",
			zap.String("remote_filename", meta.RemoteFilename),
			zap.String("filename", s.target.Filename))
	}
}

// checkSpace fails fast when the volume cannot hold the file. A checker
// error skips the check.
func (s *Session) checkSpace(total int64, logger *zap.Logger) error {
	e := s.engine
	if !e.config.SpaceCheck || e.space == nil || total <= 0 {
		return nil
	}

	usage, err := e.space.DiskUsage(s.dest)
	if err != nil {
		logger.Debug("skipping free space check", zap.Error(err))
		return nil
	}
	if uint64(total) > usage.Free {
		return domain.NewTransferError(domain.OutcomeIOFailure, "preflight",
			fmt.Errorf("%w: need %d bytes, %d free", domain.ErrInsufficientSpace, total, usage.Free))
	}
	return nil
}

// settle moves the session into its terminal phase. run only returns from
// Probing or Streaming, so a rejected transition means a broken invariant.
func (s *Session) settle(phase domain.Phase, logger *zap.Logger) {
	if err := s.state.TransitionTo(phase); err != nil {
		logger.Error("failed to settle session phase", zap.Error(err))
	}
}

func (s *Session) fail(err error) domain.Outcome {
	if errors.Is(err, domain.ErrSourceNotFound) {
		suggestion, _ := resolver.Suggest(s.target.Source)
		err = &domain.SourceNotFoundError{Source: s.target.Source, Suggestion: suggestion, Err: err}
	}
	return domain.FailureOutcome(err, s.state.Downloaded())
}

func (s *Session) cancelled(cause error) domain.Outcome {
	return domain.Outcome{
		Kind:         domain.OutcomeCancelled,
		BytesWritten: s.state.Downloaded(),
		Err:          fmt.Errorf("%w: %v", domain.ErrCancelled, cause),
	}
}

// asIOError classifies an untyped sink error as an I/O failure
func asIOError(op string, err error) error {
	var te *domain.TransferError
	if errors.As(err, &te) {
		return err
	}
	return domain.NewTransferError(domain.OutcomeIOFailure, op, fmt.Errorf("%w: %w", domain.ErrIO, err))
}

// asNetworkError classifies an untyped stream error as a network failure
func asNetworkError(op string, err error) error {
	var te *domain.TransferError
	if errors.As(err, &te) {
		return err
	}
	return domain.NewTransferError(domain.OutcomeNetworkFailure, op, fmt.Errorf("%w: %w", domain.ErrNetwork, err))
}
