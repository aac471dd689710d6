package hub

// EventType names a stream message
type EventType string

const (
	EventMapCreate   EventType = "map.create"
	EventMapView     EventType = "map.view"
	EventMapRemove   EventType = "map.remove"
	EventMarkerAdd   EventType = "marker.add"
	EventPolylineAdd EventType = "polyline.add"
	EventLayerRemove EventType = "layer.remove"
	EventNotice      EventType = "notice"
	EventStats       EventType = "stats"
)
