package httpsource

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/vertextoedge/planetdl/internal/domain"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestSource_Probe(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 1234)
	var gotUA string

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Disposition", `attachment; filename="monaco-latest.osm.pbf"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		if r.Method == http.MethodGet {
			w.Write(payload)
		}
	})

	s := New(&Config{UserAgent: "planetdl/test"}, nil)
	defer s.Close()

	meta, err := s.Probe(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if meta.Size != int64(len(payload)) {
		t.Errorf("Size = %d, want %d", meta.Size, len(payload))
	}
	if !meta.AcceptRanges {
		t.Error("AcceptRanges = false, want true")
	}
	if meta.RemoteFilename != "monaco-latest.osm.pbf" {
		t.Errorf("RemoteFilename = %q", meta.RemoteFilename)
	}
	if gotUA != "planetdl/test" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

func TestSource_ProbeStatus(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantSize   int64
		wantErr    error
		wantNoMeta bool
	}{
		{name: "head not allowed", status: http.StatusMethodNotAllowed, wantSize: domain.UnknownSize},
		{name: "head not implemented", status: http.StatusNotImplemented, wantSize: domain.UnknownSize},
		{name: "not found", status: http.StatusNotFound, wantErr: domain.ErrSourceNotFound, wantNoMeta: true},
		{name: "server error", status: http.StatusInternalServerError, wantErr: domain.ErrNetwork, wantNoMeta: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			s := New(nil, nil)
			defer s.Close()

			meta, err := s.Probe(context.Background(), srv.URL)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Probe() error = %v, want %v", err, tt.wantErr)
				}
				if domain.KindOf(err) != domain.OutcomeNetworkFailure {
					t.Errorf("KindOf() = %v, want network_failure", domain.KindOf(err))
				}
				var se *StatusError
				if !errors.As(err, &se) || se.StatusCode != tt.status {
					t.Errorf("StatusError = %v, want status %d", se, tt.status)
				}
				return
			}
			if err != nil {
				t.Fatalf("Probe() error = %v", err)
			}
			if meta.Size != tt.wantSize {
				t.Errorf("Size = %d, want %d", meta.Size, tt.wantSize)
			}
		})
	}
}

func TestSource_Open(t *testing.T) {
	payload := bytes.Repeat([]byte("osm"), 10000)
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write(payload)
	})

	s := New(nil, nil)
	defer s.Close()

	stream, err := s.Open(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer stream.Body.Close()

	if stream.ContentLength != int64(len(payload)) {
		t.Errorf("ContentLength = %d, want %d", stream.ContentLength, len(payload))
	}
	got, err := io.ReadAll(stream.Body)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("body mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestSource_OpenNotFound(t *testing.T) {
	srv := newTestServer(t, http.NotFound)
	s := New(nil, nil)
	defer s.Close()

	_, err := s.Open(context.Background(), srv.URL)
	if !errors.Is(err, domain.ErrSourceNotFound) {
		t.Fatalf("Open() error = %v, want ErrSourceNotFound", err)
	}
}

func TestSource_OpenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := New(nil, nil)
	_, err := s.Open(context.Background(), url)
	if !domain.IsNetwork(err) {
		t.Fatalf("Open() error = %v, want network failure", err)
	}
}

func TestSource_OpenCancelled(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	s := New(nil, nil)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Open(ctx, srv.URL)
	if domain.KindOf(err) != domain.OutcomeCancelled {
		t.Fatalf("Open() error = %v, want cancelled", err)
	}
}

func TestSource_InvalidURL(t *testing.T) {
	s := New(nil, nil)
	_, err := s.Open(context.Background(), "http://[::1")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("Open() error = %v, want ErrInvalidInput", err)
	}
}
