package hub

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"hydrotwin/internal/dashboard"
	"hydrotwin/internal/domain"
	"hydrotwin/internal/render"
)

// ErrMapRemoved is returned by operations on a removed map
var ErrMapRemoved = errors.New("map removed")

// Ready implements render.Host. The hub can draw once a browser is attached.
func (h *Hub) Ready() bool {
	return h.ClientCount() > 0
}

// NewMap implements render.Host
func (h *Hub) NewMap(opts render.MapOptions) (render.Map, error) {
	if !h.Ready() {
		return nil, render.ErrHostNotReady
	}

	m := h.scene.create(h, opts)
	h.Broadcast(Event{Type: EventMapCreate, Payload: mapPayload{ID: m.id, Options: opts}})
	return m, nil
}

// Notify implements dashboard.Observer
func (h *Hub) Notify(n dashboard.Notice) {
	h.Broadcast(Event{Type: EventNotice, Payload: n})
}

// GraphChanged implements dashboard.Observer
func (h *Hub) GraphChanged(g *domain.Graph) {
	payload := statsPayload{Stats: g.Stats, Summary: g.Summary}
	h.scene.setStats(&payload)
	h.Broadcast(Event{Type: EventStats, Payload: payload})
}

type mapPayload struct {
	ID      string            `json:"id"`
	Options render.MapOptions `json:"options"`
}

type viewPayload struct {
	MapID  string          `json:"map_id"`
	Center domain.Position `json:"center"`
	Zoom   int             `json:"zoom"`
}

type layerPayload struct {
	MapID   string         `json:"map_id"`
	LayerID render.LayerID `json:"layer_id"`
	Layer   any            `json:"layer,omitempty"`
}

type statsPayload struct {
	Stats   domain.NetworkStats    `json:"stats"`
	Summary domain.IncidentSummary `json:"incident_summary"`
}

// scene is the hub's record of what is on screen, used for replay
type scene struct {
	mu    sync.Mutex
	seq   int
	maps  map[string]*sceneMap
	order []string
	stats *statsPayload
}

func newScene() *scene {
	return &scene{maps: make(map[string]*sceneMap)}
}

func (s *scene) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *scene) create(h *Hub, opts render.MapOptions) *sceneMap {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := &sceneMap{
		hub:    h,
		id:     s.nextID("map"),
		opts:   opts,
		center: opts.Center,
		zoom:   opts.Zoom,
		layers: make(map[render.LayerID]layerEntry),
	}
	s.maps[m.id] = m
	s.order = append(s.order, m.id)
	return m
}

func (s *scene) setStats(p *statsPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = p
}

// replay returns the events that rebuild the current scene from nothing
func (s *scene) replay() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []Event
	for _, id := range s.order {
		m := s.maps[id]
		events = append(events, Event{Type: EventMapCreate, Payload: mapPayload{ID: m.id, Options: m.opts}})
		events = append(events, Event{Type: EventMapView, Payload: viewPayload{MapID: m.id, Center: m.center, Zoom: m.zoom}})

		layerIDs := make([]string, 0, len(m.layers))
		for lid := range m.layers {
			layerIDs = append(layerIDs, string(lid))
		}
		sort.Strings(layerIDs)
		for _, lid := range layerIDs {
			entry := m.layers[render.LayerID(lid)]
			events = append(events, Event{Type: entry.kind, Payload: layerPayload{
				MapID: m.id, LayerID: render.LayerID(lid), Layer: entry.layer,
			}})
		}
	}
	if s.stats != nil {
		events = append(events, Event{Type: EventStats, Payload: *s.stats})
	}
	return events
}

// MapCount returns the number of live maps in the scene
func (h *Hub) MapCount() int {
	h.scene.mu.Lock()
	defer h.scene.mu.Unlock()
	return len(h.scene.maps)
}

type layerEntry struct {
	kind  EventType
	layer any
}

// sceneMap is a render.Map drawn on every attached browser
type sceneMap struct {
	hub     *Hub
	id      string
	opts    render.MapOptions
	center  domain.Position
	zoom    int
	layers  map[render.LayerID]layerEntry
	removed bool
}

func (m *sceneMap) addLayer(kind EventType, layer any) (render.LayerID, error) {
	s := m.hub.scene
	s.mu.Lock()
	if m.removed {
		s.mu.Unlock()
		return "", ErrMapRemoved
	}
	id := render.LayerID(s.nextID("layer"))
	m.layers[id] = layerEntry{kind: kind, layer: layer}
	s.mu.Unlock()

	m.hub.Broadcast(Event{Type: kind, Payload: layerPayload{MapID: m.id, LayerID: id, Layer: layer}})
	return id, nil
}

// AddMarker implements render.Map
func (m *sceneMap) AddMarker(mk render.Marker) (render.LayerID, error) {
	return m.addLayer(EventMarkerAdd, mk)
}

// AddPolyline implements render.Map
func (m *sceneMap) AddPolyline(p render.Polyline) (render.LayerID, error) {
	return m.addLayer(EventPolylineAdd, p)
}

// RemoveLayer implements render.Map
func (m *sceneMap) RemoveLayer(id render.LayerID) error {
	s := m.hub.scene
	s.mu.Lock()
	if m.removed {
		s.mu.Unlock()
		return ErrMapRemoved
	}
	delete(m.layers, id)
	s.mu.Unlock()

	m.hub.Broadcast(Event{Type: EventLayerRemove, Payload: layerPayload{MapID: m.id, LayerID: id}})
	return nil
}

// SetView implements render.Map
func (m *sceneMap) SetView(center domain.Position, zoom int) error {
	s := m.hub.scene
	s.mu.Lock()
	if m.removed {
		s.mu.Unlock()
		return ErrMapRemoved
	}
	m.center = center
	m.zoom = zoom
	s.mu.Unlock()

	m.hub.Broadcast(Event{Type: EventMapView, Payload: viewPayload{MapID: m.id, Center: center, Zoom: zoom}})
	return nil
}

// Zoom implements render.Map
func (m *sceneMap) Zoom() int {
	m.hub.scene.mu.Lock()
	defer m.hub.scene.mu.Unlock()
	return m.zoom
}

// Remove implements render.Map
func (m *sceneMap) Remove() error {
	s := m.hub.scene
	s.mu.Lock()
	if m.removed {
		s.mu.Unlock()
		return ErrMapRemoved
	}
	m.removed = true
	m.layers = nil
	delete(s.maps, m.id)
	for i, id := range s.order {
		if id == m.id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	m.hub.Broadcast(Event{Type: EventMapRemove, Payload: mapPayload{ID: m.id}})
	return nil
}
