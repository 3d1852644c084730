// Package dbconn supplies the database connection plumbing shared by our
// services: fetching the connection credentials (from the remote config
// endpoint in production, a local JSON file in development), the
// process-wide write-once database name, MySQL pool construction, and a
// goose migrations helper.
package dbconn

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/creamcroissant/servekit/internal/buildmode"
	gocache "github.com/patrickmn/go-cache"
)

// ConfigURL is the remote endpoint serving the connection credentials in
// production. The endpoint uses a self-signed certificate, so the fetch
// client skips verification.
const ConfigURL = "https://lib.mardens.com/config.json"

// DefaultLocalConfigPath is where development builds look for credentials.
const DefaultLocalConfigPath = "connections.json"

const (
	cacheKey      = "connection-data"
	cacheTTL      = 5 * time.Minute
	fetchTimeout  = 10 * time.Second
	maxFetchTries = 3
)

// FilemakerCredentials holds the Filemaker sub-credential pair carried
// alongside the MySQL credentials.
type FilemakerCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ConnectionData is the JSON credential object served by the config
// endpoint (and mirrored by the local development file).
type ConnectionData struct {
	Host      string               `json:"host"`
	User      string               `json:"user"`
	Password  string               `json:"password"`
	Filemaker FilemakerCredentials `json:"filemaker"`
	Hash      string               `json:"hash"`
}

// FetcherOptions configure a Fetcher. Zero values fall back to the
// package defaults.
type FetcherOptions struct {
	// URL overrides the remote config endpoint.
	URL string
	// LocalPath overrides the development credentials file.
	LocalPath string
	// Client overrides the HTTP client used for remote fetches.
	Client *http.Client
	// CacheTTL bounds how long a fetched result is reused.
	CacheTTL time.Duration
	// Logger receives fetch diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Fetcher retrieves ConnectionData, caching results so repeated pool
// creations do not hammer the config endpoint.
type Fetcher struct {
	url       string
	localPath string
	client    *http.Client
	cache     *gocache.Cache
	ttl       time.Duration
	logger    *slog.Logger
}

// NewFetcher builds a Fetcher with the given options.
func NewFetcher(opts FetcherOptions) *Fetcher {
	url := opts.URL
	if url == "" {
		url = ConfigURL
	}
	localPath := opts.LocalPath
	if localPath == "" {
		localPath = DefaultLocalConfigPath
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = cacheTTL
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: fetchTimeout,
			Transport: &http.Transport{
				// The config endpoint serves a self-signed certificate.
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		url:       url,
		localPath: localPath,
		client:    client,
		cache:     gocache.New(ttl, ttl),
		ttl:       ttl,
		logger:    logger,
	}
}

// Fetch returns the connection credentials, from cache when fresh. In
// development builds the credentials come from the local file; otherwise
// the remote endpoint is queried with exponential backoff.
func (f *Fetcher) Fetch(ctx context.Context) (*ConnectionData, error) {
	if cached, ok := f.cache.Get(cacheKey); ok {
		if data, ok := cached.(*ConnectionData); ok {
			return data, nil
		}
	}
	return f.Refresh(ctx)
}

// Refresh bypasses the cache and fetches fresh credentials.
func (f *Fetcher) Refresh(ctx context.Context) (*ConnectionData, error) {
	var (
		data *ConnectionData
		err  error
	)
	if buildmode.IsDevelopment() {
		data, err = f.loadLocal()
	} else {
		data, err = f.fetchRemote(ctx)
	}
	if err != nil {
		return nil, err
	}
	f.cache.Set(cacheKey, data, f.ttl)
	return data, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context) (*ConnectionData, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxFetchTries), ctx)

	var data ConnectionData
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := f.client.Do(req)
		if err != nil {
			f.logger.Warn("connection config fetch failed", "url", f.url, "error", err)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("dbconn: config endpoint returned %s", resp.Status)
			if resp.StatusCode >= 500 {
				f.logger.Warn("connection config fetch failed", "url", f.url, "status", resp.StatusCode)
				return err
			}
			return backoff.Permanent(err)
		}
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
			return backoff.Permanent(fmt.Errorf("dbconn: decode config: %w", err))
		}
		return nil
	}
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("dbconn: fetch connection config: %w", err)
	}
	return &data, nil
}

// loadLocal reads the development credentials file. A missing file is
// created with zero-value credentials and reported as an error once, so
// the developer knows where to fill them in.
func (f *Fetcher) loadLocal() (*ConnectionData, error) {
	raw, err := os.ReadFile(f.localPath)
	if errors.Is(err, os.ErrNotExist) {
		if writeErr := f.writeDefaultLocal(); writeErr != nil {
			return nil, fmt.Errorf("dbconn: create default config file: %w", writeErr)
		}
		return nil, fmt.Errorf("dbconn: wrote default config to %s, fill in the credentials", f.localPath)
	}
	if err != nil {
		return nil, fmt.Errorf("dbconn: read local config: %w", err)
	}

	var data ConnectionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("dbconn: parse local config: %w", err)
	}
	return &data, nil
}

func (f *Fetcher) writeDefaultLocal() error {
	raw, err := json.MarshalIndent(ConnectionData{}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.localPath, raw, 0o644)
}

var defaultFetcher = NewFetcher(FetcherOptions{})

// Get fetches the connection credentials through the package-level
// default Fetcher.
func Get(ctx context.Context) (*ConnectionData, error) {
	return defaultFetcher.Fetch(ctx)
}
