// Package downloader streams remote media into the temp directory.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"snapbot/pkg/config"
	errs "snapbot/pkg/errors"
	"snapbot/pkg/logger"
	"snapbot/pkg/metrics"
)

// chunkSize is the read size used while streaming a body to disk
const chunkSize = 8192

// DefaultExtension is used when neither the response nor the URL names a type
const DefaultExtension = ".mp4"

// AssetStore creates and removes asset files
type AssetStore interface {
	Create(name string) (*os.File, string, error)
	Remove(path string) error
}

// Fetcher downloads one media URL at a time per caller, with a process-wide
// cap on simultaneous downloads.
type Fetcher struct {
	client  *http.Client
	store   AssetStore
	gate    *semaphore.Weighted
	maxSize int64
	headers map[string]string
	logger  logger.Logger
}

// NewFetcher creates a fetcher that writes into store
func NewFetcher(cfg config.DownloadConfig, userAgent string, store AssetStore, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	slots := int64(cfg.ConcurrentDownloads)
	if slots <= 0 {
		slots = 1
	}

	return &Fetcher{
		client:  &http.Client{Timeout: cfg.DownloadTimeout},
		store:   store,
		gate:    semaphore.NewWeighted(slots),
		maxSize: cfg.MaxFileSize,
		headers: map[string]string{
			"User-Agent": userAgent,
			"Accept":     "*/*",
		},
		logger: log,
	}
}

// SetHTTPClient replaces the underlying HTTP client
func (f *Fetcher) SetHTTPClient(hc *http.Client) {
	f.client = hc
}

// Fetch downloads rawURL to a file named name plus an inferred extension and
// returns its path. Every failure, including an oversize body, yields
// ok == false and leaves no file behind.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, name string) (string, bool) {
	start := time.Now()
	p, size, err := f.fetch(ctx, rawURL, name)
	if err != nil {
		if errs.TypeOf(err) == errs.ErrorTypeSizeLimit {
			metrics.OversizeAborts.Inc()
		}
		f.logger.WarnWithFields("media fetch failed", map[string]interface{}{
			"url":      rawURL,
			"name":     name,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return "", false
	}

	metrics.BytesDownloaded.Add(float64(size))
	f.logger.DebugWithFields("media fetched", map[string]interface{}{
		"path":     p,
		"bytes":    size,
		"duration": time.Since(start),
	})
	return p, true
}

// Release deletes a fetched asset
func (f *Fetcher) Release(assetPath string) {
	if err := f.store.Remove(assetPath); err != nil {
		f.logger.WithError(err).WarnWithFields("failed to remove asset", map[string]interface{}{
			"path": assetPath,
		})
	}
}

func (f *Fetcher) fetch(ctx context.Context, rawURL, name string) (string, int64, error) {
	if err := f.gate.Acquire(ctx, 1); err != nil {
		return "", 0, err
	}
	defer f.gate.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, errs.New(errs.ErrorTypeValidation, 0, "invalid media url: %v", err)
	}
	for key, value := range f.headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, errs.New(errs.ErrorTypeNetwork, 0, "network error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, errs.New(errs.ErrorTypeServerError, resp.StatusCode, "unexpected status code: %d", resp.StatusCode)
	}
	if f.maxSize > 0 && resp.ContentLength > f.maxSize {
		return "", 0, errs.New(errs.ErrorTypeSizeLimit, resp.StatusCode, "declared size %d exceeds limit %d", resp.ContentLength, f.maxSize)
	}

	file, assetPath, err := f.store.Create(name + Extension(resp.Header.Get("Content-Type"), rawURL))
	if err != nil {
		return "", 0, err
	}

	written, copyErr := copyLimited(file, resp.Body, f.maxSize)
	closeErr := file.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = f.store.Remove(assetPath)
		return "", 0, copyErr
	}

	// The directory may have been cleaned while we were writing.
	info, err := os.Stat(assetPath)
	if err != nil || info.Size() == 0 {
		_ = f.store.Remove(assetPath)
		return "", 0, fmt.Errorf("asset missing or empty after download")
	}
	return assetPath, written, nil
}

// copyLimited streams src to dst in fixed-size chunks and fails as soon as
// more than limit bytes have been read. A limit <= 0 disables the check.
func copyLimited(dst io.Writer, src io.Reader, limit int64) (int64, error) {
	buf := make([]byte, chunkSize)
	var total int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			total += int64(n)
			if limit > 0 && total > limit {
				return total, errs.New(errs.ErrorTypeSizeLimit, 0, "asset exceeds limit of %d bytes", limit)
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return total, fmt.Errorf("failed to write asset: %w", err)
			}
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, errs.New(errs.ErrorTypeNetwork, 0, "failed to read body: %v", readErr)
		}
	}
}

// Extension picks a file extension from the response content type, then the
// URL path, then DefaultExtension.
func Extension(contentType, rawURL string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "video"):
		return ".mp4"
	case strings.Contains(ct, "image"):
		if strings.Contains(ct, "jpeg") {
			return ".jpg"
		}
		return ".png"
	}

	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); validExtension(ext) {
			return ext
		}
	}
	return DefaultExtension
}

func validExtension(ext string) bool {
	if len(ext) < 2 || len(ext) > 6 {
		return false
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
