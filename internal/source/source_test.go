package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galois26/event-ingester/internal/config"
)

func TestHTTPSourceFetch(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("<table><tr><td>Mar 27</td></tr></table>"))
	}))
	defer srv.Close()

	src := NewHTTPSource(config.SourceConfig{URL: srv.URL, UserAgent: "event-ingester/test"})
	page, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<table><tr><td>Mar 27</td></tr></table>", page)
	assert.Equal(t, "event-ingester/test", gotUA)
	assert.Equal(t, "listing", src.Name())
}

func TestHTTPSourceStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	_, err := NewHTTPSource(config.SourceConfig{URL: srv.URL}).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream down")
}

func TestHTTPSourceRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := config.SourceConfig{URL: srv.URL, MaxRetries: 2, Backoff: time.Millisecond}
	page, err := NewHTTPSource(cfg).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", page)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPSourceSingleAttemptByDefault(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPSource(config.SourceConfig{URL: srv.URL}).Fetch(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPSourceUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPSource(config.SourceConfig{URL: url, Timeout: time.Second}).Fetch(context.Background())
	assert.Error(t, err)
}

func TestHTTPSourceRejectsNonText(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	cfg := config.SourceConfig{URL: srv.URL, MaxRetries: 3, Backoff: time.Millisecond}
	_, err := NewHTTPSource(cfg).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "application/json")
	assert.Equal(t, int32(1), calls.Load())
}
