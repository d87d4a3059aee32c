package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Get_SendsBrowserHeaders(t *testing.T) {
	var gotUA, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		w.Write([]byte("body"))
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, 0)
	body, err := c.Get(context.Background(), srv.URL, "https://fanfox.net/manga/test/v01/c001/1.html")
	require.NoError(t, err)

	assert.Equal(t, []byte("body"), body)
	assert.Contains(t, gotUA, "Mozilla/5.0")
	assert.Equal(t, "https://fanfox.net/manga/test/v01/c001/1.html", gotReferer)
}

func TestClient_Get_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, 0)
	_, err := c.Get(context.Background(), srv.URL, "")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Contains(t, statusErr.Error(), "404")
}

func TestStatusError_Retryable(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
		{http.StatusGone, false},
	}

	for _, tt := range tests {
		err := &StatusError{Code: tt.code}
		assert.Equal(t, tt.want, err.Retryable(), "status %d", tt.code)
	}
}

func TestClient_DownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image bytes"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "sub", "01.jpg")

	c := NewClient(5*time.Second, 0)
	require.NoError(t, c.DownloadFile(context.Background(), srv.URL, "", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "image bytes", string(data))

	// No .part leftovers next to the file.
	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestClient_DownloadFile_NoPartialFileOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "01.jpg")

	c := NewClient(5*time.Second, 0)
	require.Error(t, c.DownloadFile(context.Background(), srv.URL, "", dest))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed download must leave nothing behind")
}

func TestClient_RateLimiterSpacesRequests(t *testing.T) {
	var times []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		times = append(times, time.Now())
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	delay := 50 * time.Millisecond
	c := NewClient(5*time.Second, delay)

	for i := 0; i < 3; i++ {
		_, err := c.Get(context.Background(), srv.URL, "")
		require.NoError(t, err)
	}

	require.Len(t, times, 3)
	for i := 1; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])
		assert.GreaterOrEqual(t, gap, delay/2, "requests %d and %d too close", i-1, i)
	}
}

func TestClient_Get_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewClient(5*time.Second, 0)
	_, err := c.Get(ctx, srv.URL, "")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "deadline") || errors.Is(err, context.DeadlineExceeded))
}
