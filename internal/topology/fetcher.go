// Package topology keeps the latest full snapshot of the network.
//
// A Fetcher reads a snapshot from its Source once when started and then on a
// fixed interval. Each successful read replaces the held snapshot and is
// handed to the SnapshotFunc. A failed read keeps the previous snapshot and
// is retried on the next tick.
package topology

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hydrotwin/internal/domain"
	"hydrotwin/internal/logging"
	"hydrotwin/internal/metrics"
)

// DefaultInterval is the snapshot poll period
const DefaultInterval = 30 * time.Second

var (
	// ErrFetch wraps every failed snapshot read
	ErrFetch = errors.New("topology fetch failed")
	// ErrAlreadyRunning is returned by Start on a running fetcher
	ErrAlreadyRunning = errors.New("fetcher already running")
)

// Source reads the authoritative topology
type Source interface {
	FetchTopology(ctx context.Context) (*domain.Snapshot, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context) (*domain.Snapshot, error)

// FetchTopology implements Source
func (f SourceFunc) FetchTopology(ctx context.Context) (*domain.Snapshot, error) {
	return f(ctx)
}

// SnapshotFunc receives each successfully fetched snapshot. ctx is cancelled
// when the fetcher stops, so a blocked receiver can give up.
type SnapshotFunc func(ctx context.Context, snap *domain.Snapshot)

// Fetcher polls a Source for snapshots
type Fetcher struct {
	source     Source
	interval   time.Duration
	onSnapshot SnapshotFunc
	logger     *slog.Logger
	metrics    *metrics.Registry
	now        func() time.Time

	mu       sync.Mutex
	latest   *domain.Snapshot
	failures int
	lastErr  error
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewFetcher creates a stopped fetcher. A non-positive interval uses
// DefaultInterval.
func NewFetcher(source Source, interval time.Duration, onSnapshot SnapshotFunc, logger *slog.Logger, reg *metrics.Registry) *Fetcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Fetcher{
		source:     source,
		interval:   interval,
		onSnapshot: onSnapshot,
		logger:     logging.OrNop(logger).With("component", "fetcher"),
		metrics:    reg,
		now:        time.Now,
	}
}

// Start performs one fetch immediately and then one per interval until Stop
func (f *Fetcher) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	f.wg.Add(1)
	go f.pollLoop(loopCtx)

	f.logger.Info("started polling loop", "interval", f.interval)
	return nil
}

func (f *Fetcher) pollLoop(ctx context.Context) {
	defer f.wg.Done()

	// Run initial fetch
	_ = f.fetch(ctx)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.logger.Debug("stopping polling loop")
			return
		case <-ticker.C:
			_ = f.fetch(ctx)
		}
	}
}

// Stop cancels the poll loop and waits for it to exit. Calling Stop on a
// stopped fetcher does nothing. A stopped fetcher may be started again.
func (f *Fetcher) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	f.cancel = nil
	f.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	f.wg.Wait()
	f.logger.Info("stopped polling loop")
}

// Running reports whether the poll loop is active
func (f *Fetcher) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancel != nil
}

// Refresh fetches a snapshot now, outside the poll schedule
func (f *Fetcher) Refresh(ctx context.Context) error {
	return f.fetch(ctx)
}

// fetch reads one snapshot, keeping the previous one on failure
func (f *Fetcher) fetch(ctx context.Context) error {
	start := f.now()
	snap, err := f.source.FetchTopology(ctx)
	if err == nil && snap == nil {
		err = errors.New("source returned no snapshot")
	}
	elapsed := f.now().Sub(start)

	if err != nil {
		f.mu.Lock()
		f.failures++
		f.lastErr = err
		failures := f.failures
		f.mu.Unlock()

		f.metrics.RecordFetch(err, elapsed, 0, 0, failures)
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrFetch, ctx.Err())
		}
		f.logger.Warn("snapshot fetch failed, keeping previous snapshot",
			"error", err, "consecutive_failures", failures)
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}

	// a read that finished after Stop is not delivered
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrFetch, ctx.Err())
	}

	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = f.now()
	}

	f.mu.Lock()
	f.latest = snap
	f.failures = 0
	f.lastErr = nil
	f.mu.Unlock()

	f.metrics.RecordFetch(nil, elapsed, len(snap.Nodes), len(snap.Edges), 0)
	f.logger.Debug("snapshot fetched", "nodes", len(snap.Nodes), "edges", len(snap.Edges),
		"duration", elapsed)

	if f.onSnapshot != nil {
		f.onSnapshot(ctx, snap)
	}
	return nil
}

// Latest returns the most recent successful snapshot, or nil
func (f *Fetcher) Latest() *domain.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest
}

// Status describes the fetcher's health
type Status struct {
	Running             bool      `json:"running"`
	Interval            string    `json:"interval"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	LastSuccess         time.Time `json:"last_success,omitempty"`
}

// Status reports the fetcher's health
func (f *Fetcher) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := Status{
		Running:             f.cancel != nil,
		Interval:            f.interval.String(),
		ConsecutiveFailures: f.failures,
	}
	if f.lastErr != nil {
		st.LastError = f.lastErr.Error()
	}
	if f.latest != nil {
		st.LastSuccess = f.latest.FetchedAt
	}
	return st
}
