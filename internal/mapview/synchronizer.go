// Package mapview projects the selected devices onto an external map surface.
package mapview

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/m0rjc/DeviceConsole/internal/metrics"
	"github.com/m0rjc/DeviceConsole/internal/templates"
	"github.com/m0rjc/DeviceConsole/internal/types"
)

const (
	// SnapshotID names the map view's entry in the snapshot store.
	SnapshotID = "map"

	// SingleDeviceZoom is the zoom used when centering on one device.
	SingleDeviceZoom = 15
	// DefaultZoom is the initial zoom level.
	DefaultZoom = 10
)

// DefaultCenter is the initial camera position (Moscow).
var DefaultCenter = Coords{55.751244, 37.618423}

// Synchronizer frames the map camera and renders placemarks. It holds no
// device state of its own; calls made before a surface or object manager is
// attached are dropped.
type Synchronizer struct {
	mu      sync.RWMutex
	surface Surface
	objects ObjectManager
	center  Coords
	zoom    int
	bounds  *Bounds

	onChange func()
}

// NewSynchronizer creates a synchronizer with the default camera and no surface.
func NewSynchronizer() *Synchronizer {
	return &Synchronizer{
		center: DefaultCenter,
		zoom:   DefaultZoom,
	}
}

// SetSurface attaches (or with nil, detaches) the map surface.
func (s *Synchronizer) SetSurface(surface Surface) {
	s.mu.Lock()
	s.surface = surface
	s.mu.Unlock()
}

// SetObjectManager attaches (or with nil, detaches) the marker collection.
func (s *Synchronizer) SetObjectManager(objects ObjectManager) {
	s.mu.Lock()
	s.objects = objects
	s.mu.Unlock()
}

// SetOnChange registers fn to be called after the camera changes.
func (s *Synchronizer) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// SetBounds records bounds without moving the surface.
func (s *Synchronizer) SetBounds(b *Bounds) {
	s.mu.Lock()
	s.bounds = b
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// FitToDevices moves the camera to show every device. One device is
// centered at SingleDeviceZoom; several are fitted to their bounding box.
func (s *Synchronizer) FitToDevices(devices []types.MapDevice) {
	s.mu.Lock()
	if s.surface == nil || len(devices) == 0 {
		s.mu.Unlock()
		if len(devices) > 0 {
			metrics.MapSyncSkipped.WithLabelValues("fit").Inc()
			slog.Debug("mapview.fit_skipped",
				"component", "mapview",
				"event", "fit.no_surface",
			)
		}
		return
	}

	if len(devices) == 1 {
		d := devices[0]
		s.center = Coords{d.Lat, d.Lon}
		s.zoom = SingleDeviceZoom
		s.surface.SetCenter(s.center, s.zoom)
	} else {
		b := boundingBox(devices)
		s.bounds = &b
		s.surface.SetBounds(b, BoundsOptions{CheckZoomRange: true})
	}
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func boundingBox(devices []types.MapDevice) Bounds {
	minLat, maxLat := devices[0].Lat, devices[0].Lat
	minLon, maxLon := devices[0].Lon, devices[0].Lon
	for _, d := range devices[1:] {
		minLat = min(minLat, d.Lat)
		maxLat = max(maxLat, d.Lat)
		minLon = min(minLon, d.Lon)
		maxLon = max(maxLon, d.Lon)
	}
	return Bounds{{minLat, minLon}, {maxLat, maxLon}}
}

// AddDevicePlacemarks replaces every placemark with one per device.
func (s *Synchronizer) AddDevicePlacemarks(devices []types.MapDevice) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.objects == nil {
		metrics.MapSyncSkipped.WithLabelValues("placemarks").Inc()
		return
	}
	s.objects.RemoveAll()
	added := 0
	for _, d := range devices {
		f, err := NewFeature(d)
		if err != nil {
			slog.Error("mapview.placemark_render_failed",
				"component", "mapview",
				"event", "placemark.render_error",
				"device_id", d.ID,
				"error", err,
			)
			continue
		}
		s.objects.Add(f)
		added++
	}
	metrics.MapPlacemarks.Set(float64(added))
}

// ClearAllPlacemarks removes every placemark. Safe without an object manager.
func (s *Synchronizer) ClearAllPlacemarks() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.objects != nil {
		s.objects.RemoveAll()
		metrics.MapPlacemarks.Set(0)
	}
}

// renderTooltip is replaced in tests.
var renderTooltip = templates.RenderTooltip

// NewFeature builds the placemark for one device.
func NewFeature(d types.MapDevice) (Feature, error) {
	tooltip, err := renderTooltip(templates.NewTooltipData(d.ID, d.Name, d.Channels, d.Timestamp, d.Lat, d.Lon))
	if err != nil {
		return Feature{}, fmt.Errorf("rendering tooltip: %w", err)
	}
	icon := IconNormal
	if d.Alarm {
		icon = IconAlarm
	}
	return Feature{
		Type: "Feature",
		ID:   d.ID,
		Geometry: Geometry{
			Type:        "Point",
			Coordinates: [2]float64{d.Lon, d.Lat},
		},
		Properties: Properties{
			TooltipHTML: tooltip,
			IconMarker:  icon,
		},
	}, nil
}

// Camera is the synchronizer's view of the map camera.
type Camera struct {
	Center Coords  `json:"center"`
	Zoom   int     `json:"zoom"`
	Bounds *Bounds `json:"bounds"`
}

// Camera returns the current camera state.
func (s *Synchronizer) Camera() Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := Camera{Center: s.center, Zoom: s.zoom}
	if s.bounds != nil {
		b := *s.bounds
		c.Bounds = &b
	}
	return c
}

// SnapshotID implements persist.Owner.
func (s *Synchronizer) SnapshotID() string {
	return SnapshotID
}

// MarshalSnapshot serialises the camera state.
func (s *Synchronizer) MarshalSnapshot() ([]byte, error) {
	return json.Marshal(s.Camera())
}

// RestoreSnapshot restores the camera state. The surface is not moved.
func (s *Synchronizer) RestoreSnapshot(data []byte) error {
	var c Camera
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("decoding map snapshot: %w", err)
	}
	if c.Zoom <= 0 {
		c.Zoom = DefaultZoom
	}
	s.mu.Lock()
	s.center = c.Center
	s.zoom = c.Zoom
	s.bounds = c.Bounds
	s.mu.Unlock()
	return nil
}
