// Package rendertest provides an in-memory drawing host for tests.
package rendertest

import (
	"errors"
	"fmt"
	"sync"

	"hydrotwin/internal/domain"
	"hydrotwin/internal/render"
)

// ErrMapRemoved is returned by operations on a removed map
var ErrMapRemoved = errors.New("map removed")

// Host records every map and layer it is asked to draw
type Host struct {
	mu       sync.Mutex
	ready    bool
	nextID   int
	maps     []*Map
	created  int
	maxLive  int
	failNext error
}

// NewHost creates a host in the given readiness state
func NewHost(ready bool) *Host {
	return &Host{ready: ready}
}

// SetReady flips readiness
func (h *Host) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// FailNextMap makes the next NewMap call return err
func (h *Host) FailNextMap(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failNext = err
}

// Ready implements render.Host
func (h *Host) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready
}

// NewMap implements render.Host
func (h *Host) NewMap(opts render.MapOptions) (render.Map, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.ready {
		return nil, render.ErrHostNotReady
	}
	if h.failNext != nil {
		err := h.failNext
		h.failNext = nil
		return nil, err
	}

	m := &Map{
		host:    h,
		opts:    opts,
		center:  opts.Center,
		zoom:    opts.Zoom,
		markers: make(map[render.LayerID]render.Marker),
		lines:   make(map[render.LayerID]render.Polyline),
	}
	h.maps = append(h.maps, m)
	h.created++
	if live := h.liveLocked(); live > h.maxLive {
		h.maxLive = live
	}
	return m, nil
}

func (h *Host) liveLocked() int {
	n := 0
	for _, m := range h.maps {
		if !m.removed {
			n++
		}
	}
	return n
}

func (h *Host) layerID() render.LayerID {
	h.nextID++
	return render.LayerID(fmt.Sprintf("layer-%d", h.nextID))
}

// LiveMaps returns the number of maps not yet removed
func (h *Host) LiveMaps() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.liveLocked()
}

// MaxLiveMaps returns the highest number of simultaneously live maps seen
func (h *Host) MaxLiveMaps() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxLive
}

// MapsCreated returns how many maps were ever created
func (h *Host) MapsCreated() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.created
}

// Current returns the most recent live map, or nil
func (h *Host) Current() *Map {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.maps) - 1; i >= 0; i-- {
		if !h.maps[i].removed {
			return h.maps[i]
		}
	}
	return nil
}

// Map is an in-memory render.Map
type Map struct {
	host    *Host
	opts    render.MapOptions
	center  domain.Position
	zoom    int
	removed bool
	markers map[render.LayerID]render.Marker
	lines   map[render.LayerID]render.Polyline
}

// AddMarker implements render.Map
func (m *Map) AddMarker(mk render.Marker) (render.LayerID, error) {
	m.host.mu.Lock()
	defer m.host.mu.Unlock()
	if m.removed {
		return "", ErrMapRemoved
	}
	id := m.host.layerID()
	m.markers[id] = mk
	return id, nil
}

// AddPolyline implements render.Map
func (m *Map) AddPolyline(p render.Polyline) (render.LayerID, error) {
	m.host.mu.Lock()
	defer m.host.mu.Unlock()
	if m.removed {
		return "", ErrMapRemoved
	}
	id := m.host.layerID()
	m.lines[id] = p
	return id, nil
}

// RemoveLayer implements render.Map
func (m *Map) RemoveLayer(id render.LayerID) error {
	m.host.mu.Lock()
	defer m.host.mu.Unlock()
	if m.removed {
		return ErrMapRemoved
	}
	delete(m.markers, id)
	delete(m.lines, id)
	return nil
}

// SetView implements render.Map
func (m *Map) SetView(center domain.Position, zoom int) error {
	m.host.mu.Lock()
	defer m.host.mu.Unlock()
	if m.removed {
		return ErrMapRemoved
	}
	m.center = center
	m.zoom = zoom
	return nil
}

// Zoom implements render.Map
func (m *Map) Zoom() int {
	m.host.mu.Lock()
	defer m.host.mu.Unlock()
	return m.zoom
}

// SetZoom simulates the user zooming the map
func (m *Map) SetZoom(zoom int) {
	m.host.mu.Lock()
	defer m.host.mu.Unlock()
	m.zoom = zoom
}

// Remove implements render.Map
func (m *Map) Remove() error {
	m.host.mu.Lock()
	defer m.host.mu.Unlock()
	if m.removed {
		return ErrMapRemoved
	}
	m.removed = true
	m.markers = make(map[render.LayerID]render.Marker)
	m.lines = make(map[render.LayerID]render.Polyline)
	return nil
}

// Options returns the options the map was created with
func (m *Map) Options() render.MapOptions {
	return m.opts
}

// Center returns the current view center
func (m *Map) Center() domain.Position {
	m.host.mu.Lock()
	defer m.host.mu.Unlock()
	return m.center
}

// Markers returns the drawn markers keyed by entity id
func (m *Map) Markers() map[string]render.Marker {
	m.host.mu.Lock()
	defer m.host.mu.Unlock()
	out := make(map[string]render.Marker, len(m.markers))
	for _, mk := range m.markers {
		out[mk.EntityID] = mk
	}
	return out
}

// Lines returns the drawn lines keyed by entity id
func (m *Map) Lines() map[string]render.Polyline {
	m.host.mu.Lock()
	defer m.host.mu.Unlock()
	out := make(map[string]render.Polyline, len(m.lines))
	for _, p := range m.lines {
		out[p.EntityID] = p
	}
	return out
}

// LayerCount returns the number of layers currently drawn
func (m *Map) LayerCount() int {
	m.host.mu.Lock()
	defer m.host.mu.Unlock()
	return len(m.markers) + len(m.lines)
}
