// Package httpsource implements port.Source over HTTP/1.1, HTTP/2 and
// optionally HTTP/3.
package httpsource

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/vfaronov/httpheader"
	"go.uber.org/zap"

	"github.com/vertextoedge/planetdl/internal/domain"
	"github.com/vertextoedge/planetdl/internal/port"
)

// Config contains HTTP source configuration
type Config struct {
	UserAgent             string
	ConnectTimeout        time.Duration
	ResponseHeaderTimeout time.Duration
	IdleConnTimeout       time.Duration
	BufferSize            int
	MaxBytesPerSecond     int64
	HTTP3                 bool
	SkipTLSVerify         bool
}

// DefaultConfig returns default source configuration
func DefaultConfig() *Config {
	return &Config{
		UserAgent:             "planetdl",
		ConnectTimeout:        30 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		BufferSize:            256 * 1024,
	}
}

// Source fetches extracts from HTTP mirrors
type Source struct {
	config         *Config
	client         *http.Client
	http3Transport *http3.RoundTripper
	limiter        *Throttle
	logger         *zap.Logger
}

// Ensure Source implements port.Source
var _ port.Source = (*Source)(nil)

// New creates a new HTTP source. One Source is shared by every session of a
// client so connections are pooled.
func New(cfg *Config, logger *zap.Logger) *Source {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.ResponseHeaderTimeout == 0 {
		cfg.ResponseHeaderTimeout = 30 * time.Second
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256 * 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Source{
		config:  cfg,
		limiter: NewThrottle(cfg.MaxBytesPerSecond),
		logger:  logger,
	}

	if cfg.HTTP3 {
		s.http3Transport = &http3.RoundTripper{
			TLSClientConfig: &tls.Config{
				NextProtos:         []string{"h3"},
				InsecureSkipVerify: cfg.SkipTLSVerify,
			},
			QUICConfig: &quic.Config{
				HandshakeIdleTimeout: cfg.ConnectTimeout,
				MaxIdleTimeout:       cfg.IdleConnTimeout,
				KeepAlivePeriod:      15 * time.Second,
			},
		}
		// No overall timeout; downloads may take hours.
		s.client = &http.Client{Transport: s.http3Transport}
		return s
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.SkipTLSVerify,
		},

		// Connection pooling
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     cfg.IdleConnTimeout,

		// Buffer sizes for high-speed transfers
		WriteBufferSize: cfg.BufferSize,
		ReadBufferSize:  cfg.BufferSize,

		ForceAttemptHTTP2: true,

		// Extracts are already compressed
		DisableCompression: true,

		// Response header timeout (not total download timeout)
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
	}

	s.client = &http.Client{Transport: transport}
	return s
}

// Close releases pooled connections
func (s *Source) Close() error {
	if s.http3Transport != nil {
		return s.http3Transport.Close()
	}
	if t, ok := s.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	return nil
}

// Probe issues a HEAD request. Servers that refuse HEAD yield unknown
// metadata rather than an error.
func (s *Source) Probe(ctx context.Context, url string) (*port.SourceMetadata, error) {
	req, err := s.newRequest(ctx, http.MethodHead, url)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, s.transportError(ctx, "probe", err)
	}
	defer resp.Body.Close()

	meta := &port.SourceMetadata{Size: domain.UnknownSize}

	switch {
	case resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented:
		s.logger.Debug("HEAD not supported, size unknown",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return meta, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, statusError("probe", url, resp.StatusCode)
	}

	if resp.ContentLength >= 0 {
		meta.Size = resp.ContentLength
	}
	meta.AcceptRanges = strings.Contains(strings.ToLower(resp.Header.Get("Accept-Ranges")), "bytes")
	if _, name, err := httpheader.ContentDisposition(resp.Header); err == nil && name != "" {
		meta.RemoteFilename = name
	}

	s.logger.Debug("probed source",
		zap.String("url", url),
		zap.Int64("size", meta.Size),
		zap.Bool("accept_ranges", meta.AcceptRanges))

	return meta, nil
}

// Open issues a GET request and returns the body stream
func (s *Source) Open(ctx context.Context, url string) (*port.Stream, error) {
	req, err := s.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, s.transportError(ctx, "open", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, statusError("open", url, resp.StatusCode)
	}

	return &port.Stream{
		Body:          s.limiter.Wrap(ctx, resp.Body),
		ContentLength: resp.ContentLength,
	}, nil
}

func (s *Source) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, domain.NewTransferError(domain.OutcomeInvalidInput, "build request",
			fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
	}
	if s.config.UserAgent != "" {
		req.Header.Set("User-Agent", s.config.UserAgent)
	}
	return req, nil
}

// transportError classifies a failed round trip. Cancellation of the
// caller's context wins over the network error it caused.
func (s *Source) transportError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return domain.NewTransferError(domain.OutcomeCancelled, op, fmt.Errorf("%w: %v", domain.ErrCancelled, ctx.Err()))
	}
	return domain.NewTransferError(domain.OutcomeNetworkFailure, op, fmt.Errorf("%w: %v", domain.ErrNetwork, err))
}

// StatusError reports an unexpected HTTP status
type StatusError struct {
	URL        string
	StatusCode int
}

// Error returns the error message
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d %s for %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

func statusError(op, url string, code int) error {
	se := &StatusError{URL: url, StatusCode: code}
	if code == http.StatusNotFound || code == http.StatusGone {
		return domain.NewTransferError(domain.OutcomeNetworkFailure, op, fmt.Errorf("%w: %w", domain.ErrSourceNotFound, se))
	}
	return domain.NewTransferError(domain.OutcomeNetworkFailure, op, fmt.Errorf("%w: %w", domain.ErrNetwork, se))
}
