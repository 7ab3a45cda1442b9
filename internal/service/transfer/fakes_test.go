package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/vertextoedge/planetdl/internal/domain"
	"github.com/vertextoedge/planetdl/internal/port"
)

// fakeSource implements port.Source for testing
type fakeSource struct {
	meta     *port.SourceMetadata
	probeErr error
	openErr  error

	// body builds the stream for each Open call
	body          func() io.Reader
	contentLength int64

	mu     sync.Mutex
	opened int
	closed int
}

func (f *fakeSource) Probe(ctx context.Context, url string) (*port.SourceMetadata, error) {
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	if f.meta == nil {
		return &port.SourceMetadata{Size: domain.UnknownSize}, nil
	}
	m := *f.meta
	return &m, nil
}

func (f *fakeSource) Open(ctx context.Context, url string) (*port.Stream, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.mu.Lock()
	f.opened++
	f.mu.Unlock()
	return &port.Stream{
		Body:          &trackedBody{r: f.body(), onClose: f.markClosed},
		ContentLength: f.contentLength,
	}, nil
}

func (f *fakeSource) markClosed() {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
}

func (f *fakeSource) counts() (opened, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened, f.closed
}

type trackedBody struct {
	r       io.Reader
	onClose func()
	once    sync.Once
}

func (b *trackedBody) Read(p []byte) (int, error) { return b.r.Read(p) }

func (b *trackedBody) Close() error {
	b.once.Do(b.onClose)
	return nil
}

// staticSource serves payload with a correct size
func staticSource(payload []byte) *fakeSource {
	return &fakeSource{
		meta:          &port.SourceMetadata{Size: int64(len(payload))},
		body:          func() io.Reader { return bytes.NewReader(payload) },
		contentLength: int64(len(payload)),
	}
}

// errAfterReader returns n bytes of data and then err
type errAfterReader struct {
	data []byte
	err  error
}

func (r *errAfterReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

// patternReader produces size bytes without allocating
type patternReader struct {
	remaining int64
}

func (r *patternReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	for i := range p {
		p[i] = byte(i)
	}
	r.remaining -= int64(len(p))
	return len(p), nil
}

// memSinks implements port.SinkFactory for testing
type memSinks struct {
	createErr error
	failAfter int // fail writes once this many bytes were accepted; 0 = never
	discard   bool

	mu    sync.Mutex
	sinks map[string]*memSink
}

func newMemSinks() *memSinks {
	return &memSinks{sinks: make(map[string]*memSink)}
}

func (m *memSinks) Create(ctx context.Context, dest string) (port.Sink, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	s := &memSink{failAfter: m.failAfter, discard: m.discard}
	m.mu.Lock()
	m.sinks[dest] = s
	m.mu.Unlock()
	return s, nil
}

func (m *memSinks) get(dest string) *memSink {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sinks[dest]
}

var errDiskFull = errors.New("no space left on device")

type memSink struct {
	failAfter int
	discard   bool

	mu        sync.Mutex
	buf       bytes.Buffer
	written   int
	committed bool
	aborted   bool
}

func (s *memSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter > 0 && s.written+len(p) > s.failAfter {
		return 0, errDiskFull
	}
	if !s.discard {
		s.buf.Write(p)
	}
	s.written += len(p)
	return len(p), nil
}

func (s *memSink) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = true
	return nil
}

func (s *memSink) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.committed {
		s.aborted = true
	}
	return nil
}

func (s *memSink) bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.buf.Bytes()...)
}

// fakeSpace implements port.SpaceChecker for testing
type fakeSpace struct {
	free uint64
	err  error
}

func (f *fakeSpace) DiskUsage(dest string) (*port.DiskUsage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &port.DiskUsage{Total: f.free * 2, Used: f.free, Free: f.free, UsedPct: 50}, nil
}

// memJournal implements port.TransferJournal for testing
type memJournal struct {
	mu      sync.Mutex
	records map[string]domain.TransferRecord
}

func newMemJournal() *memJournal {
	return &memJournal{records: make(map[string]domain.TransferRecord)}
}

func (j *memJournal) Begin(r *domain.TransferRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records[r.ID] = *r
	return nil
}

func (j *memJournal) Finish(r *domain.TransferRecord) error { return j.Begin(r) }

func (j *memJournal) Get(id string) (*domain.TransferRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	r, ok := j.records[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &r, nil
}

func (j *memJournal) Recent(limit int) ([]*domain.TransferRecord, error) { return nil, nil }
func (j *memJournal) Stats() (*domain.JournalStats, error)               { return &domain.JournalStats{}, nil }
func (j *memJournal) Ping() error                                         { return nil }
func (j *memJournal) Close() error                                        { return nil }
