package mapview

// Coords is a geographic position as [lat, lon].
type Coords [2]float64

// Bounds is an axis-aligned box as [[minLat, minLon], [maxLat, maxLon]].
type Bounds [2]Coords

// BoundsOptions controls how a surface fits a bounding box.
type BoundsOptions struct {
	CheckZoomRange bool `json:"checkZoomRange"`
}

// Surface is the camera of an external map provider.
type Surface interface {
	SetCenter(center Coords, zoom int)
	SetBounds(bounds Bounds, opts BoundsOptions)
}

// ObjectManager is the marker collection of an external map provider.
type ObjectManager interface {
	Add(feature Feature)
	RemoveAll()
}

// Feature is one placemark in the shape the map provider expects.
type Feature struct {
	Type       string     `json:"type"`
	ID         int        `json:"id"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

// Geometry is a point geometry. Coordinates are [lon, lat].
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// Properties carries the rendered tooltip and the alarm icon marker.
type Properties struct {
	TooltipHTML string `json:"hintContent"`
	IconMarker  string `json:"iconContent"`
}

// Icon markers for placemarks.
const (
	IconAlarm  = "🔴"
	IconNormal = "🔵"
)
