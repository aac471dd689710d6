package render

import (
	"errors"
	"fmt"
	"log/slog"

	"hydrotwin/internal/domain"
	"hydrotwin/internal/logging"
	"hydrotwin/internal/metrics"
)

type mountState int

const (
	stateUnmounted mountState = iota
	statePending              // waiting for the host to become ready
	stateMounted
)

// Manager owns the map for one mounted dashboard. It is driven by a single
// goroutine and is not safe for concurrent use.
type Manager struct {
	library *Library
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Registry

	state  mountState
	handle *Handle
	m      Map

	markers map[string]LayerID
	lines   map[string]LayerID

	// latest graph handed to Render, drawn as soon as the map exists
	latest *domain.Graph
}

// NewManager creates an unmounted manager
func NewManager(library *Library, opts Options, logger *slog.Logger, reg *metrics.Registry) *Manager {
	return &Manager{
		library: library,
		opts:    opts.withDefaults(),
		logger:  logging.OrNop(logger),
		metrics: reg,
		markers: make(map[string]LayerID),
		lines:   make(map[string]LayerID),
	}
}

// Mount claims the host and creates the map. When the host is not ready the
// mount is deferred until HostReady; the returned bool reports whether the
// map now exists. Mounting an already-mounted manager does nothing.
func (mgr *Manager) Mount() (bool, error) {
	switch mgr.state {
	case stateMounted:
		return true, nil
	case statePending:
		return mgr.initialize()
	}

	handle, err := mgr.library.Acquire()
	if err != nil {
		return false, err
	}
	mgr.handle = handle
	mgr.state = statePending
	return mgr.initialize()
}

// HostReady retries a deferred mount
func (mgr *Manager) HostReady() (bool, error) {
	if mgr.state != statePending {
		return mgr.state == stateMounted, nil
	}
	return mgr.initialize()
}

func (mgr *Manager) initialize() (bool, error) {
	host := mgr.handle.Host()
	if !host.Ready() {
		mgr.logger.Debug("drawing host not ready, deferring mount")
		return false, nil
	}

	m, err := host.NewMap(MapOptions{
		Center: mgr.opts.Center,
		Zoom:   mgr.opts.Zoom,
		Tiles:  mgr.opts.Tiles,
	})
	if errors.Is(err, ErrHostNotReady) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create map: %w", err)
	}

	mgr.m = m
	mgr.state = stateMounted
	mgr.metrics.SetMapInstances(1)
	mgr.logger.Info("map mounted", "zoom", mgr.opts.Zoom,
		"lat", mgr.opts.Center.X, "lng", mgr.opts.Center.Y)

	if mgr.latest != nil {
		if err := mgr.rebuild(mgr.latest); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Mounted reports whether a live map exists
func (mgr *Manager) Mounted() bool {
	return mgr.state == stateMounted
}

// Pending reports whether a mount is waiting on the host
func (mgr *Manager) Pending() bool {
	return mgr.state == statePending
}

// Render replaces every drawn marker and line with those of graph. Before
// the map exists the graph is kept and drawn at mount time.
func (mgr *Manager) Render(graph *domain.Graph) error {
	if graph == nil {
		return nil
	}
	mgr.latest = graph
	if mgr.state != stateMounted {
		return nil
	}
	return mgr.rebuild(graph)
}

func (mgr *Manager) rebuild(graph *domain.Graph) error {
	var errs []error

	for id, layer := range mgr.markers {
		if err := mgr.m.RemoveLayer(layer); err != nil {
			errs = append(errs, fmt.Errorf("remove marker %s: %w", id, err))
		}
	}
	for id, layer := range mgr.lines {
		if err := mgr.m.RemoveLayer(layer); err != nil {
			errs = append(errs, fmt.Errorf("remove line %s: %w", id, err))
		}
	}
	mgr.markers = make(map[string]LayerID, len(graph.Nodes))
	mgr.lines = make(map[string]LayerID, len(graph.Edges))

	style := mgr.opts.Style
	for _, node := range graph.Nodes {
		layer, err := mgr.m.AddMarker(style.MarkerFor(node))
		if err != nil {
			errs = append(errs, fmt.Errorf("add marker %s: %w", node.ID, err))
			continue
		}
		mgr.markers[node.ID] = layer
	}
	for _, edge := range graph.Edges {
		layer, err := mgr.m.AddPolyline(style.PolylineFor(edge))
		if err != nil {
			errs = append(errs, fmt.Errorf("add line %s: %w", edge.ID, err))
			continue
		}
		mgr.lines[edge.ID] = layer
	}

	mgr.metrics.RecordRebuild(len(mgr.markers), len(mgr.lines))
	return errors.Join(errs...)
}

// SetCenter moves the view to pos keeping the current zoom. The center is
// also remembered for the next mount.
func (mgr *Manager) SetCenter(pos domain.Position) error {
	mgr.opts.Center = pos
	if mgr.state != stateMounted {
		return nil
	}
	if err := mgr.m.SetView(pos, mgr.m.Zoom()); err != nil {
		return fmt.Errorf("set view: %w", err)
	}
	return nil
}

// Center returns the configured center
func (mgr *Manager) Center() domain.Position {
	return mgr.opts.Center
}

// LayerCounts returns the number of tracked markers and lines
func (mgr *Manager) LayerCounts() (markers, lines int) {
	return len(mgr.markers), len(mgr.lines)
}

// Unmount destroys the map, forgets every tracked layer and releases the
// host. It is safe to call at any time, any number of times.
func (mgr *Manager) Unmount() error {
	if mgr.state == stateUnmounted {
		return nil
	}

	var err error
	if mgr.m != nil {
		if rerr := mgr.m.Remove(); rerr != nil {
			err = fmt.Errorf("remove map: %w", rerr)
		}
		mgr.m = nil
		mgr.metrics.SetMapInstances(0)
	}
	mgr.markers = make(map[string]LayerID)
	mgr.lines = make(map[string]LayerID)
	mgr.latest = nil

	if mgr.handle != nil {
		mgr.handle.Release()
		mgr.handle = nil
	}
	mgr.state = stateUnmounted
	mgr.logger.Info("map unmounted")
	return err
}
