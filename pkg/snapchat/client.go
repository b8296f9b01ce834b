// Package snapchat fetches public profile pages and parses user identifiers.
package snapchat

import (
	"context"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"
	"snapbot/pkg/config"
	errs "snapbot/pkg/errors"
	"snapbot/pkg/logger"
	"snapbot/pkg/retry"
)

// maxPageSize bounds how much of a profile page is read into memory
const maxPageSize = 8 << 20

// Client fetches public profile pages
type Client struct {
	httpClient  *http.Client
	headers     map[string]string
	urlTemplate string
	gate        *semaphore.Weighted
	retry       *retry.Config
	logger      logger.Logger
}

// NewClient creates a new page client from the source configuration
func NewClient(cfg config.SourceConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	slots := int64(cfg.MaxConcurrentRequests)
	if slots <= 0 {
		slots = 5
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		headers: map[string]string{
			"User-Agent":                userAgent,
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language":           "en-US,en;q=0.5",
			"DNT":                       "1",
			"Upgrade-Insecure-Requests": "1",
			"Sec-Fetch-Dest":            "document",
			"Sec-Fetch-Mode":            "navigate",
			"Sec-Fetch-Site":            "none",
			"Sec-Fetch-User":            "?1",
		},
		urlTemplate: cfg.ProfileURLTemplate,
		gate:        semaphore.NewWeighted(slots),
		retry: &retry.Config{
			MaxAttempts: cfg.RetryAttempts + 1,
			Backoff: &retry.ExponentialBackoff{
				BaseDelay:    cfg.RetryDelay,
				MaxDelay:     10 * cfg.RetryDelay,
				Multiplier:   2.0,
				JitterFactor: 0.1,
			},
			RetryIf: retry.DefaultRetryIf,
			Logger:  log,
		},
		logger: log,
	}
}

// SetHTTPClient replaces the underlying HTTP client
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// FetchProfilePage returns the HTML of username's public page. Transient
// failures are retried; any non-200 status is an error.
func (c *Client) FetchProfilePage(ctx context.Context, username string) (string, error) {
	if err := c.gate.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.gate.Release(1)

	pageURL := ProfileURL(c.urlTemplate, username)
	return retry.DoWithResult(ctx, func(ctx context.Context) (string, error) {
		return c.get(ctx, pageURL)
	}, c.retry)
}

func (c *Client) get(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", errs.New(errs.ErrorTypeValidation, 0, "failed to create request: %v", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.WarnWithFields("profile page request failed", map[string]interface{}{
			"url":      pageURL,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return "", errs.New(errs.ErrorTypeNetwork, 0, "network error: %v", err)
	}
	defer resp.Body.Close()
	logger.LogRequest(c.logger, req.Method, pageURL, resp.StatusCode, time.Since(start))

	if err := checkResponseStatus(resp); err != nil {
		return "", err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", errs.New(errs.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}
	return string(body), nil
}

// checkResponseStatus maps a non-200 response to a typed error
func checkResponseStatus(resp *http.Response) error {
	switch code := resp.StatusCode; {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return errs.New(errs.ErrorTypeNotFound, code, "profile page not found")
	case code == http.StatusTooManyRequests:
		return errs.New(errs.ErrorTypeRateLimit, code, "rate limited by source")
	case code >= 500:
		return errs.New(errs.ErrorTypeServerError, code, "source server error")
	default:
		return errs.New(errs.ErrorTypeUnknown, code, "unexpected status code: %d", code)
	}
}
