package planetdl

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertextoedge/planetdl/internal/domain"
)

// mirror serves extracts from memory. Paths missing from files return 404;
// paths in broken advertise twice the bytes they send.
type mirror struct {
	files  map[string][]byte
	broken map[string][]byte
}

func (m *mirror) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if body, ok := m.broken[r.URL.Path]; ok {
		w.Header().Set("Content-Length", strconv.Itoa(2*len(body)))
		if r.Method == http.MethodHead {
			return
		}
		w.Write(body)
		return
	}
	body, ok := m.files[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, filepath.Base(r.URL.Path), time.Time{}, bytes.NewReader(body))
}

func newMirror(t *testing.T) (*httptest.Server, *mirror) {
	t.Helper()
	m := &mirror{
		files: map[string][]byte{
			"/planet-latest.osm.pbf":         bytes.Repeat([]byte("P"), 300*1024),
			"/europe-latest.osm.pbf":         bytes.Repeat([]byte("E"), 200*1024),
			"/europe/belgium-latest.osm.pbf": bytes.Repeat([]byte("B"), 150*1024+17),
			"/asia/japan-latest.osm.pbf":     bytes.Repeat([]byte("J"), 90*1024),
		},
		broken: map[string][]byte{
			"/europe/broken-latest.osm.pbf": bytes.Repeat([]byte("X"), 64*1024),
		},
	}
	srv := httptest.NewServer(m)
	t.Cleanup(srv.Close)
	return srv, m
}

func newTestClient(t *testing.T, srv *httptest.Server, mutate func(*Options)) *Client {
	t.Helper()
	opts := Options{
		PlanetURL:        srv.URL + "/planet-latest.osm.pbf",
		GeofabrikBaseURL: srv.URL,
		OutputDir:        t.TempDir(),
		Workers:          4,
	}
	if mutate != nil {
		mutate(&opts)
	}
	c, err := NewClient(opts)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_DownloadDefaultFilename(t *testing.T) {
	srv, m := newMirror(t)
	c := newTestClient(t, srv, nil)

	result := c.Download("europe/belgium", "")
	require.Equal(t, Success, result)

	name, err := GetFilename("europe/belgium")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(c.opts.OutputDir, name))
	require.NoError(t, err)
	assert.Equal(t, m.files["/europe/belgium-latest.osm.pbf"], data)
}

func TestClient_DownloadInvalidSource(t *testing.T) {
	srv, _ := newMirror(t)
	c := newTestClient(t, srv, nil)

	for _, source := range []string{"", "   ", "../etc/passwd", "a/b/c/d", "europe//belgium"} {
		assert.Equal(t, InvalidParameter, c.Download(source, ""), "source %q", source)
	}
}

func TestClient_DownloadUnwritableDestination(t *testing.T) {
	srv, _ := newMirror(t)
	c := newTestClient(t, srv, nil)

	// A regular file cannot be used as a directory, even by root
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	result, err := c.DownloadContext(context.Background(), "planet", filepath.Join(blocker, "out.pbf"), nil)
	assert.Equal(t, IOError, result)
	assert.True(t, errors.Is(err, domain.ErrIO), "err = %v", err)
}

func TestClient_MissingParentDirectory(t *testing.T) {
	srv, m := newMirror(t)

	t.Run("explicit destination is not created", func(t *testing.T) {
		c := newTestClient(t, srv, nil)
		parent := filepath.Join(t.TempDir(), "forbidden")

		result, err := c.DownloadContext(context.Background(), "europe", filepath.Join(parent, "out.pbf"), nil)
		assert.Equal(t, IOError, result)
		assert.True(t, errors.Is(err, domain.ErrIO), "err = %v", err)
		assert.NoDirExists(t, parent)
	})

	t.Run("output directory is created", func(t *testing.T) {
		outDir := filepath.Join(t.TempDir(), "extracts", "weekly")
		c := newTestClient(t, srv, func(o *Options) { o.OutputDir = outDir })

		require.Equal(t, Success, c.Download("europe", ""))
		data, err := os.ReadFile(filepath.Join(outDir, "europe-latest.osm.pbf"))
		require.NoError(t, err)
		assert.Equal(t, m.files["/europe-latest.osm.pbf"], data)
	})
}

func TestClient_DownloadInterrupted(t *testing.T) {
	srv, m := newMirror(t)
	c := newTestClient(t, srv, nil)
	dest := filepath.Join(t.TempDir(), "broken.pbf")

	result, err := c.DownloadContext(context.Background(), "europe/broken", dest, nil)
	assert.Equal(t, NetworkError, result, "err = %v", err)

	if info, statErr := os.Stat(dest); statErr == nil {
		assert.Less(t, info.Size(), int64(2*len(m.broken["/europe/broken-latest.osm.pbf"])))
	}
}

func TestClient_ConcurrentDownloads(t *testing.T) {
	srv, m := newMirror(t)
	c := newTestClient(t, srv, nil)

	sources := []string{"europe", "asia/japan"}
	var wg sync.WaitGroup
	results := make([]Result, len(sources))
	totals := make([]uint64, len(sources))

	for i, source := range sources {
		wg.Add(1)
		go func(i int, source string) {
			defer wg.Done()
			results[i] = c.DownloadWithProgress(source, "", func(downloaded, total uint64) {
				totals[i] = downloaded
			})
		}(i, source)
	}
	wg.Wait()

	for i, source := range sources {
		require.Equal(t, Success, results[i], source)
		name, err := GetFilename(source)
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(c.opts.OutputDir, name))
		require.NoError(t, err)
		assert.Equal(t, m.files["/"+source+"-latest.osm.pbf"], data, source)
		assert.Equal(t, uint64(len(data)), totals[i], source)
	}
}

func TestClient_ProgressEndsAtSize(t *testing.T) {
	srv, m := newMirror(t)
	c := newTestClient(t, srv, func(o *Options) { o.ChunkSize = 8 * 1024 })
	want := uint64(len(m.files["/europe/belgium-latest.osm.pbf"]))

	var samples [][2]uint64
	result := c.DownloadWithProgress("europe/belgium", "", func(downloaded, total uint64) {
		samples = append(samples, [2]uint64{downloaded, total})
	})
	require.Equal(t, Success, result)
	require.NotEmpty(t, samples)

	var prev uint64
	for _, s := range samples {
		assert.GreaterOrEqual(t, s[0], prev)
		assert.Equal(t, want, s[1])
		prev = s[0]
	}
	assert.Equal(t, want, samples[len(samples)-1][0])
}

func TestClient_NotFoundSuggestsSource(t *testing.T) {
	srv, _ := newMirror(t)
	c := newTestClient(t, srv, nil)

	result, err := c.DownloadContext(context.Background(), "antartica", "", nil)
	assert.Equal(t, NetworkError, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean 'antarctica'")
}

func TestClient_Cancelled(t *testing.T) {
	srv, _ := newMirror(t)
	c := newTestClient(t, srv, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := c.DownloadContext(ctx, "europe", "", nil)
	assert.Equal(t, UnknownError, result)
	assert.True(t, errors.Is(err, domain.ErrCancelled), "err = %v", err)
}

func TestClient_OverwriteNever(t *testing.T) {
	srv, _ := newMirror(t)
	c := newTestClient(t, srv, func(o *Options) { o.Overwrite = "never" })

	dest := filepath.Join(t.TempDir(), "keep.pbf")
	require.NoError(t, os.WriteFile(dest, []byte("original"), 0644))

	result, err := c.DownloadContext(context.Background(), "europe", dest, nil)
	assert.Equal(t, IOError, result)
	assert.True(t, errors.Is(err, domain.ErrDestinationExists), "err = %v", err)

	data, _ := os.ReadFile(dest)
	assert.Equal(t, "original", string(data))
}

func TestClient_DirectoryDestination(t *testing.T) {
	srv, m := newMirror(t)
	c := newTestClient(t, srv, nil)
	dir := t.TempDir()

	require.Equal(t, Success, c.Download("asia/japan", dir))

	data, err := os.ReadFile(filepath.Join(dir, "japan-latest.osm.pbf"))
	require.NoError(t, err)
	assert.Equal(t, m.files["/asia/japan-latest.osm.pbf"], data)
}

func TestClient_BucketDestination(t *testing.T) {
	srv, m := newMirror(t)
	c := newTestClient(t, srv, nil)
	dir := t.TempDir()

	require.Equal(t, Success, c.Download("europe", "file://"+filepath.ToSlash(dir)+"/europe.pbf"))

	data, err := os.ReadFile(filepath.Join(dir, "europe.pbf"))
	require.NoError(t, err)
	assert.Equal(t, m.files["/europe-latest.osm.pbf"], data)
}

func TestClient_Journal(t *testing.T) {
	srv, _ := newMirror(t)
	journal := filepath.Join(t.TempDir(), "journal.db")
	c := newTestClient(t, srv, func(o *Options) {
		o.JournalPath = journal
		o.EnableMetrics = true
	})

	require.Equal(t, Success, c.Download("europe", ""))
	require.Equal(t, NetworkError, c.Download("europe/broken", ""))

	records, err := c.Journal().Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	stats, err := c.Journal().Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalTransfers)
	assert.Equal(t, 1, stats.SuccessfulCount)
	assert.NotNil(t, c.Metrics())
}

func TestClient_Resolve(t *testing.T) {
	srv, _ := newMirror(t)
	c := newTestClient(t, srv, nil)

	target, err := c.Resolve("europe/belgium")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/europe/belgium-latest.osm.pbf", target.URL)
	assert.Equal(t, "belgium-latest.osm.pbf", target.Filename)
	assert.Equal(t, "subregion", target.Tier)

	dest, err := c.Destination("planet", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.opts.OutputDir, "planet-latest.osm.pbf"), dest)
}

func TestNewClient_InvalidOptions(t *testing.T) {
	_, err := NewClient(Options{Overwrite: "sometimes"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewClient(Options{ChunkSize: 64 * 1024 * 1024})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
