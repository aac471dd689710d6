// Package dashboard runs the live topology session behind one mounted map.
//
// A Session owns the latest snapshot, the override ledger and the render
// manager. All of them are touched only by the goroutine running Session.Run;
// the fetcher, the change listener and API callers hand their inputs to that
// goroutine over a channel. Each input is followed by a reconciliation pass,
// and the map is rebuilt when the reconciled graph differs from the one on
// screen.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hydrotwin/internal/changes"
	"hydrotwin/internal/domain"
	"hydrotwin/internal/logging"
	"hydrotwin/internal/metrics"
	"hydrotwin/internal/override"
	"hydrotwin/internal/reconcile"
	"hydrotwin/internal/render"
	"hydrotwin/internal/topology"
)

// ErrClosed is returned by calls made after Run has returned
var ErrClosed = errors.New("dashboard session closed")

// Config tunes a Session
type Config struct {
	PollInterval   time.Duration
	OverrideMaxAge time.Duration
	Palette        reconcile.Palette
}

// Session is the event loop of one dashboard
type Session struct {
	fetcher    *topology.Fetcher
	listener   *changes.Listener
	manager    *render.Manager
	reconciler *reconcile.Reconciler
	ledger     *override.Ledger
	observer   Observer
	logger     *slog.Logger
	metrics    *metrics.Registry
	now        func() time.Time
	maxAge     time.Duration

	inbox chan func()
	done  chan struct{}

	// owned by the Run goroutine
	runCtx    context.Context
	snapshot  *domain.Snapshot
	graph     *domain.Graph
	mounted   bool
	listening bool
	// feedLost is set when the subscription dropped during this mount
	feedLost bool
}

// New wires a session. observer may be nil.
func New(cfg Config, source topology.Source, channel changes.Channel, manager *render.Manager,
	observer Observer, logger *slog.Logger, reg *metrics.Registry) *Session {

	if observer == nil {
		observer = nopObserver{}
	}
	logger = logging.OrNop(logger)

	ledger := override.New()
	ledger.MaxAge = cfg.OverrideMaxAge

	s := &Session{
		manager:    manager,
		reconciler: reconcile.New(cfg.Palette),
		ledger:     ledger,
		observer:   observer,
		logger:     logger.With("component", "session"),
		metrics:    reg,
		now:        time.Now,
		maxAge:     cfg.OverrideMaxAge,
		inbox:      make(chan func(), 64),
		done:       make(chan struct{}),
		runCtx:     context.Background(),
	}
	s.fetcher = topology.NewFetcher(source, cfg.PollInterval, s.postSnapshot, logger, reg)
	s.listener = changes.NewListener(channel, s.postOverride, logger, reg)
	s.listener.OnDrop(func() { s.post(context.Background(), s.feedDropped) })
	return s
}

// Run processes inputs until ctx is cancelled, then unmounts
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	s.runCtx = ctx

	var expire <-chan time.Time
	if s.maxAge > 0 {
		ticker := time.NewTicker(s.maxAge / 2)
		defer ticker.Stop()
		expire = ticker.C
	}

	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-expire:
			if s.mounted {
				s.reconcileAndRender()
			}
		case <-ctx.Done():
			if err := s.unmount(); err != nil {
				s.logger.Warn("unmount on shutdown", "error", err)
			}
			return nil
		}
	}
}

// do runs fn on the session goroutine and waits for its result
func (s *Session) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case s.inbox <- func() { errc <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

// post queues fn without waiting for it to run
func (s *Session) post(ctx context.Context, fn func()) {
	select {
	case s.inbox <- fn:
	case <-ctx.Done():
	case <-s.done:
	}
}

func (s *Session) postSnapshot(ctx context.Context, snap *domain.Snapshot) {
	s.post(ctx, func() { s.applySnapshot(snap) })
}

func (s *Session) postOverride(ctx context.Context, req changes.OverrideRequest) {
	s.post(ctx, func() { s.applyOverride(req) })
}

// Mount starts polling and creates the map. The change subscription opens
// once the map exists, which may be later if the drawing host is not ready.
func (s *Session) Mount(ctx context.Context) error {
	return s.do(ctx, s.mount)
}

// Unmount stops polling, closes the change subscription and removes the map.
// All three steps run even when one of them fails.
func (s *Session) Unmount(ctx context.Context) error {
	return s.do(ctx, s.unmount)
}

// HostReady tells the session the drawing host can now create maps
func (s *Session) HostReady(ctx context.Context) error {
	return s.do(ctx, s.hostReady)
}

func (s *Session) mount() error {
	if s.mounted {
		return nil
	}

	if err := s.fetcher.Start(s.runCtx); err != nil && !errors.Is(err, topology.ErrAlreadyRunning) {
		return fmt.Errorf("start fetcher: %w", err)
	}

	drawn, err := s.manager.Mount()
	if err != nil {
		s.fetcher.Stop()
		return fmt.Errorf("mount map: %w", err)
	}

	s.mounted = true
	s.logger.Info("dashboard mounted", "map_ready", drawn)
	if drawn {
		s.startListener()
	}
	return nil
}

func (s *Session) hostReady() error {
	if !s.mounted {
		return nil
	}
	drawn, err := s.manager.HostReady()
	if err != nil {
		return fmt.Errorf("mount map: %w", err)
	}
	if drawn && !s.listening && !s.feedLost {
		s.startListener()
	}
	return nil
}

// feedDropped records a subscription that ended on its own. It is not
// reopened until the dashboard is mounted again.
func (s *Session) feedDropped() {
	// a drop reported after a remount belongs to the old subscription
	if !s.listening || s.listener.Listening() {
		return
	}
	s.listening = false
	s.feedLost = true
	s.logger.Warn("live edge changes lost, continuing on snapshots")
}

// startListener opens the change subscription. Failure leaves the dashboard
// running on snapshots alone.
func (s *Session) startListener() {
	if err := s.listener.Start(s.runCtx); err != nil {
		s.logger.Error("live edge changes unavailable", "error", err)
		return
	}
	s.listening = true
}

func (s *Session) unmount() error {
	if !s.mounted {
		return nil
	}

	var errs []error
	s.fetcher.Stop()
	if err := s.listener.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := s.manager.Unmount(); err != nil {
		errs = append(errs, err)
	}

	s.mounted = false
	s.listening = false
	s.feedLost = false
	s.snapshot = nil
	s.graph = nil
	s.metrics.RecordOverridesCleared("reset", s.ledger.Reset())

	s.logger.Info("dashboard unmounted")
	return errors.Join(errs...)
}

func (s *Session) applySnapshot(snap *domain.Snapshot) {
	if !s.mounted {
		return
	}
	s.snapshot = snap

	if confirmed := s.ledger.Confirm(snap); len(confirmed) > 0 {
		s.metrics.RecordOverridesCleared("confirmed", len(confirmed))
		s.logger.Debug("overrides confirmed by snapshot", "edges", confirmed)
	}
	s.reconcileAndRender()
}

func (s *Session) applyOverride(req changes.OverrideRequest) {
	if !s.mounted {
		return
	}

	at := s.now()
	s.ledger.Put(req.EdgeID, req.EdgeName, at)
	s.observer.Notify(IsolationNotice(req.EdgeID, req.EdgeName, at))
	s.reconcileAndRender()
}

func (s *Session) reconcileAndRender() {
	if expired := s.ledger.Expire(s.now()); len(expired) > 0 {
		s.metrics.RecordOverridesCleared("expired", len(expired))
		s.logger.Info("overrides expired unconfirmed", "edges", expired)
	}

	graph := s.reconciler.Reconcile(s.snapshot, s.ledger)
	s.metrics.RecordReconcile(s.ledger.Len(), len(graph.Dropped))
	if len(graph.Dropped) > 0 {
		s.logger.Debug("edges with unknown endpoints left out", "edges", graph.Dropped)
	}

	if s.graph.Equal(graph) {
		return
	}
	s.graph = graph

	if err := s.manager.Render(graph); err != nil {
		s.logger.Warn("render incomplete", "error", err)
	}
	s.observer.GraphChanged(graph)
}

// Refresh fetches a snapshot now instead of waiting for the next tick
func (s *Session) Refresh(ctx context.Context) error {
	return s.fetcher.Refresh(ctx)
}

// ResetOverrides drops every pending override and returns how many there were
func (s *Session) ResetOverrides(ctx context.Context) (int, error) {
	var n int
	err := s.do(ctx, func() error {
		n = s.ledger.Reset()
		s.metrics.RecordOverridesCleared("reset", n)
		if s.mounted {
			s.reconcileAndRender()
		}
		return nil
	})
	return n, err
}

// Recenter moves the map view, keeping its zoom
func (s *Session) Recenter(ctx context.Context, pos domain.Position) error {
	return s.do(ctx, func() error {
		return s.manager.SetCenter(pos)
	})
}

// Graph returns the graph currently on screen, or nil before the first pass
func (s *Session) Graph(ctx context.Context) (*domain.Graph, error) {
	var g *domain.Graph
	err := s.do(ctx, func() error {
		g = s.graph
		return nil
	})
	return g, err
}

// Snapshot returns the latest snapshot the session has applied
func (s *Session) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	err := s.do(ctx, func() error {
		snap = s.snapshot
		return nil
	})
	return snap, err
}

// Overrides returns the pending overrides
func (s *Session) Overrides(ctx context.Context) ([]override.Entry, error) {
	var entries []override.Entry
	err := s.do(ctx, func() error {
		entries = s.ledger.Entries()
		return nil
	})
	return entries, err
}

// Status summarizes the session for the API
type Status struct {
	Mounted   bool            `json:"mounted"`
	MapReady  bool            `json:"map_ready"`
	Listening bool            `json:"listening"`
	FeedLost  bool            `json:"feed_lost,omitempty"`
	Overrides int             `json:"overrides"`
	Center    domain.Position `json:"center"`
	Fetcher   topology.Status `json:"fetcher"`
}

// Status reports the session state
func (s *Session) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.do(ctx, func() error {
		st = Status{
			Mounted:   s.mounted,
			MapReady:  s.manager.Mounted(),
			Listening: s.listening,
			FeedLost:  s.feedLost,
			Overrides: s.ledger.Len(),
			Center:    s.manager.Center(),
			Fetcher:   s.fetcher.Status(),
		}
		return nil
	})
	return st, err
}
