// Package http provides an HTTP client configured for the source site.
//
// The Client in this package handles:
//   - Browser-like User-Agent and per-request Referer headers
//   - A shared cookie jar for the site's session cookies
//   - Request spacing via a rate limiter
//   - Streaming file downloads with atomic rename
//   - Status code classification for retry decisions
//
// # Basic Usage
//
//	client := http.NewClient(30*time.Second, time.Second)
//
//	// Fetch HTML page
//	html, err := client.GetString(ctx, chapterURL, "")
//
//	// Download a page image, sending the chapter page as referer
//	err = client.DownloadFile(ctx, imageURL, chapterURL, "/downloads/001.jpg")
//
// # Retry Classification
//
// Non-2xx responses surface as *StatusError. Use Retryable to decide
// whether another attempt can help:
//
//	var se *http.StatusError
//	if errors.As(err, &se) && !se.Retryable() {
//	    // permanent failure, give up immediately
//	}
package http
