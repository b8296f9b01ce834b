package downloader

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"snapbot/pkg/config"
	"snapbot/pkg/logger"
	"snapbot/pkg/storage"
)

func newTestFetcher(t *testing.T, maxSize int64, concurrent int) (*Fetcher, *storage.Manager) {
	t.Helper()
	store, err := storage.NewManager(filepath.Join(t.TempDir(), "assets"))
	require.NoError(t, err)

	cfg := config.DefaultConfig().Download
	cfg.MaxFileSize = maxSize
	cfg.ConcurrentDownloads = concurrent
	cfg.DownloadTimeout = 5 * time.Second
	return NewFetcher(cfg, "", store, logger.NewNopLogger()), store
}

// streamBody writes n bytes without a Content-Length so the reader cannot
// know the size up front.
func streamBody(w http.ResponseWriter, n int) {
	chunk := bytes.Repeat([]byte("x"), 1024)
	flusher, _ := w.(http.Flusher)
	for written := 0; written < n; written += len(chunk) {
		if n-written < len(chunk) {
			chunk = chunk[:n-written]
		}
		w.Write(chunk)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func TestFetchWritesAsset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "*/*", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpegdata"))
	}))
	defer server.Close()

	f, store := newTestFetcher(t, 1024, 2)
	p, ok := f.Fetch(context.Background(), server.URL+"/pic", "42_1700000000_0")

	require.True(t, ok)
	assert.Equal(t, filepath.Join(store.Dir(), "42_1700000000_0.jpg"), p)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "jpegdata", string(data))

	f.Release(p)
	assert.NoFileExists(t, p)
	assert.Equal(t, 0, store.Tracked())
}

func TestFetchOversizeLeavesNoFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		streamBody(w, 64*1024)
	}))
	defer server.Close()

	f, store := newTestFetcher(t, 10*1024, 2)
	p, ok := f.Fetch(context.Background(), server.URL+"/big.mp4", "1_1_0")

	assert.False(t, ok)
	assert.Empty(t, p)
	assert.Equal(t, 0, store.Count())
	assert.Equal(t, 0, store.Tracked())
}

func TestFetchDeclaredOversize(t *testing.T) {
	body := bytes.Repeat([]byte("y"), 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer server.Close()

	f, store := newTestFetcher(t, 1000, 1)
	_, ok := f.Fetch(context.Background(), server.URL+"/x.jpg", "1_1_1")

	assert.False(t, ok)
	assert.Equal(t, 0, store.Count())
}

func TestFetchExactlyAtLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		streamBody(w, 2048)
	}))
	defer server.Close()

	f, _ := newTestFetcher(t, 2048, 1)
	p, ok := f.Fetch(context.Background(), server.URL+"/clip.webm", "1_1_2")

	require.True(t, ok)
	assert.Equal(t, ".webm", filepath.Ext(p))
}

func TestFetchFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) }},
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"empty body", func(w http.ResponseWriter, r *http.Request) { w.Header().Set("Content-Type", "video/mp4") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			f, store := newTestFetcher(t, 1024, 1)
			_, ok := f.Fetch(context.Background(), server.URL, "1_1_3")
			assert.False(t, ok)
			assert.Equal(t, 0, store.Count())
		})
	}
}

func TestFetchUnreachable(t *testing.T) {
	f, _ := newTestFetcher(t, 1024, 1)
	_, ok := f.Fetch(context.Background(), "http://127.0.0.1:1/nothing", "1_1_4")
	assert.False(t, ok)
}

func TestFetchAdmissionGate(t *testing.T) {
	var inFlight, peak int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f, _ := newTestFetcher(t, 1024, 2)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, ok := f.Fetch(context.Background(), server.URL+"/a.png", "gate_"+string(rune('a'+i)))
			if assert.True(t, ok) {
				f.Release(p)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestFetchCancelledWhileWaitingForGate(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f, _ := newTestFetcher(t, 1024, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if p, ok := f.Fetch(context.Background(), server.URL, "holder"); ok {
			f.Release(p)
		}
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok := f.Fetch(ctx, server.URL, "waiter")
	assert.False(t, ok)

	close(release)
	<-done
}

func TestExtension(t *testing.T) {
	tests := []struct {
		contentType string
		url         string
		want        string
	}{
		{"video/mp4", "https://x.test/a.jpg", ".mp4"},
		{"image/jpeg", "https://x.test/a", ".jpg"},
		{"image/png; charset=binary", "https://x.test/a.jpg", ".png"},
		{"image/webp", "https://x.test/a.webp", ".png"},
		{"application/octet-stream", "https://x.test/path/clip.MOV?sig=1", ".mov"},
		{"", "https://x.test/noext", ".mp4"},
		{"", "https://x.test/weird.tar~gz", ".mp4"},
		{"", "://bad url", ".mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.contentType+" "+tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, Extension(tt.contentType, tt.url))
		})
	}
}
