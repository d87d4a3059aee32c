package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"
)

// defaultUserAgent mimics a desktop browser; the source site serves
// different markup (or a challenge page) to obvious bots.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// StatusError is returned for non-2xx HTTP responses. It carries the
// status code so callers can decide whether a retry makes sense.
type StatusError struct {
	Code   int
	Status string
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s (%s)", e.Code, e.Status, e.URL)
}

// Retryable reports whether the status is worth retrying: 429 and all
// 5xx responses are transient, everything else in the 4xx family is a
// permanent answer from the server.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Client wraps HTTP operations with source-site specific configuration.
//
// Client provides:
//   - A browser-like User-Agent and per-request Referer headers
//   - A shared cookie jar (the site's page scripts require session cookies)
//   - A rate limiter spacing out requests to respect the site's informal
//     rate tolerance
//   - Streaming file downloads
//
// Example usage:
//
//	client := NewClient(30*time.Second, time.Second)
//
//	html, err := client.GetString(ctx, pageURL, "")
//
//	err = client.DownloadFile(ctx, imgURL, chapterURL, "/tmp/001.jpg")
type Client struct {
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
}

// NewClient creates a new HTTP client for the source site.
//
// timeout bounds each individual request. delay is the minimum spacing
// between any two requests issued through this client; zero disables
// rate limiting.
func NewClient(timeout, delay time.Duration) *Client {
	jar, _ := cookiejar.New(nil)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		userAgent: defaultUserAgent,
		limiter:   limiter,
	}
}

func (c *Client) do(ctx context.Context, url, referer string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status, URL: url}
	}

	return resp, nil
}

// Get performs a GET request and returns the response body as bytes.
//
// referer is sent as the Referer header when non-empty; the source site
// rejects image and script requests without one.
func (c *Client) Get(ctx context.Context, url, referer string) ([]byte, error) {
	resp, err := c.do(ctx, url, referer)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// GetString performs a GET request and returns the response body as a
// string. Convenience wrapper around Get for HTML and script content.
func (c *Client) GetString(ctx context.Context, url, referer string) (string, error) {
	body, err := c.Get(ctx, url, referer)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// DownloadFile downloads a URL to destPath, streaming the body to disk.
//
// The parent directory is created if missing. The file is written to a
// temporary sibling first and renamed into place, so a partially
// downloaded page never looks like a completed one on a re-run.
func (c *Client) DownloadFile(ctx context.Context, url, referer, destPath string) error {
	resp, err := c.do(ctx, url, referer)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), filepath.Base(destPath)+".part-*")
	if err != nil {
		return err
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), destPath)
}
