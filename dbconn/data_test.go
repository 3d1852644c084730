package dbconn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/creamcroissant/servekit/internal/buildmode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleData = ConnectionData{
	Host:     "db.example.test",
	User:     "svc",
	Password: "hunter2",
	Filemaker: FilemakerCredentials{
		Username: "fm-user",
		Password: "fm-pass",
	},
	Hash: "abc123",
}

func forceProduction(t *testing.T) {
	t.Helper()
	prev := buildmode.Development
	buildmode.Development = false
	t.Cleanup(func() { buildmode.Development = prev })
}

func forceDevelopment(t *testing.T) {
	t.Helper()
	prev := buildmode.Development
	buildmode.Development = true
	t.Cleanup(func() { buildmode.Development = prev })
}

func TestFetchRemote(t *testing.T) {
	forceProduction(t)

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(sampleData))
	}))
	defer srv.Close()

	f := NewFetcher(FetcherOptions{URL: srv.URL})
	data, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &sampleData, data)
}

func TestFetchCachesResult(t *testing.T) {
	forceProduction(t)

	var hits atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.NoError(t, json.NewEncoder(w).Encode(sampleData))
	}))
	defer srv.Close()

	f := NewFetcher(FetcherOptions{URL: srv.URL, CacheTTL: time.Minute})

	_, err := f.Fetch(context.Background())
	require.NoError(t, err)
	_, err = f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	// Refresh bypasses the cache.
	_, err = f.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchRetriesServerErrors(t *testing.T) {
	forceProduction(t)

	var hits atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(sampleData))
	}))
	defer srv.Close()

	f := NewFetcher(FetcherOptions{URL: srv.URL})
	data, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleData.Host, data.Host)
	assert.GreaterOrEqual(t, hits.Load(), int32(2))
}

func TestFetchClientErrorIsNotRetried(t *testing.T) {
	forceProduction(t)

	var hits atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(FetcherOptions{URL: srv.URL})
	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestLoadLocalCreatesDefaultFile(t *testing.T) {
	forceDevelopment(t)

	path := filepath.Join(t.TempDir(), "connections.json")
	f := NewFetcher(FetcherOptions{LocalPath: path})

	// First call writes a zero-value file and fails so the developer
	// knows to fill in credentials.
	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)

	raw, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	var created ConnectionData
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.Equal(t, ConnectionData{}, created)
}

func TestLoadLocalReadsCredentials(t *testing.T) {
	forceDevelopment(t)

	path := filepath.Join(t.TempDir(), "connections.json")
	raw, err := json.Marshal(sampleData)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	f := NewFetcher(FetcherOptions{LocalPath: path})
	data, fetchErr := f.Fetch(context.Background())
	require.NoError(t, fetchErr)
	assert.Equal(t, &sampleData, data)
}

func TestRefresherImmediateFetch(t *testing.T) {
	forceProduction(t)

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(sampleData))
	}))
	defer srv.Close()

	refresher := NewRefresher(NewFetcher(FetcherOptions{URL: srv.URL}), nil)
	require.NoError(t, refresher.Start(context.Background(), "@hourly"))
	defer refresher.Stop()

	latest, ok := refresher.Latest()
	require.True(t, ok)
	assert.Equal(t, sampleData.User, latest.User)

	// A second Start must be rejected.
	assert.Error(t, refresher.Start(context.Background(), "@hourly"))
}

func TestRefresherStartRetriesAfterFailedFetch(t *testing.T) {
	forceDevelopment(t)

	path := filepath.Join(t.TempDir(), "connections.json")
	refresher := NewRefresher(NewFetcher(FetcherOptions{LocalPath: path}), nil)

	// The first Start fails (the local file does not exist yet) and must
	// leave the refresher stopped so Start can be retried.
	require.Error(t, refresher.Start(context.Background(), "@hourly"))
	_, ok := refresher.Latest()
	assert.False(t, ok)

	raw, err := json.Marshal(sampleData)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	require.NoError(t, refresher.Start(context.Background(), "@hourly"))
	defer refresher.Stop()

	latest, ok := refresher.Latest()
	require.True(t, ok)
	assert.Equal(t, sampleData.Host, latest.Host)

	// The retry must not have queued a duplicate cron job.
	assert.Len(t, refresher.cron.Entries(), 1)
}
