package dbconn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const refreshTimeout = 30 * time.Second

// Refresher re-fetches the connection credentials on a cron schedule so
// long-lived services pick up credential rotation without a restart.
type Refresher struct {
	cron    *cron.Cron
	fetcher *Fetcher
	logger  *slog.Logger

	mu         sync.RWMutex
	latest     *ConnectionData
	started    bool
	registered bool
}

// NewRefresher wraps fetcher with a cron scheduler supporting optional
// seconds and descriptors like "@hourly".
func NewRefresher(fetcher *Fetcher, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Refresher{
		cron:    cron.New(cron.WithParser(parser)),
		fetcher: fetcher,
		logger:  logger,
	}
}

// Start performs one immediate fetch, then refreshes on the given cron
// spec until Stop is called. A failed fetch leaves the Refresher stopped
// so the caller can retry Start; the cron job itself is registered once
// and reused across retries.
func (r *Refresher) Start(ctx context.Context, spec string) error {
	if spec == "" {
		return fmt.Errorf("dbconn: refresh spec is required")
	}

	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return fmt.Errorf("dbconn: refresher already started")
	}
	if !r.registered {
		if _, err := r.cron.AddFunc(spec, r.refreshOnce); err != nil {
			r.mu.Unlock()
			return fmt.Errorf("dbconn: register refresh job: %w", err)
		}
		r.registered = true
	}
	r.started = true
	r.mu.Unlock()

	data, err := r.fetcher.Refresh(ctx)
	if err != nil {
		r.mu.Lock()
		r.started = false
		r.mu.Unlock()
		return err
	}
	r.setLatest(data)

	r.cron.Start()
	r.logger.Info("connection config refresher started", "spec", spec)
	return nil
}

// Stop halts the schedule and returns a context that is done once any
// in-flight refresh finishes.
func (r *Refresher) Stop() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return context.Background()
	}
	r.started = false
	return r.cron.Stop()
}

// Latest returns the most recently fetched credentials, if any.
func (r *Refresher) Latest() (*ConnectionData, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest, r.latest != nil
}

func (r *Refresher) setLatest(data *ConnectionData) {
	r.mu.Lock()
	r.latest = data
	r.mu.Unlock()
}

func (r *Refresher) refreshOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	start := time.Now()
	data, err := r.fetcher.Refresh(ctx)
	if err != nil {
		r.logger.Error("connection config refresh failed", "error", err, "elapsed", time.Since(start))
		return
	}
	r.setLatest(data)
	r.logger.Debug("connection config refreshed", "elapsed", time.Since(start))
}
