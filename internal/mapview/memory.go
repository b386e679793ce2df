package mapview

import "sync"

// MemorySurface is an in-process map surface and marker collection. It
// records what a real provider would display so that it can be served to
// clients or inspected in tests.
type MemorySurface struct {
	mu         sync.RWMutex
	center     *Coords
	zoom       int
	bounds     *Bounds
	boundsOpts BoundsOptions
	features   []Feature
}

// NewMemorySurface creates an empty surface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{features: []Feature{}}
}

// SetCenter implements Surface.
func (m *MemorySurface) SetCenter(center Coords, zoom int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := center
	m.center = &c
	m.zoom = zoom
	m.bounds = nil
}

// SetBounds implements Surface.
func (m *MemorySurface) SetBounds(bounds Bounds, opts BoundsOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := bounds
	m.bounds = &b
	m.boundsOpts = opts
	m.center = nil
}

// Add implements ObjectManager.
func (m *MemorySurface) Add(feature Feature) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.features = append(m.features, feature)
}

// RemoveAll implements ObjectManager.
func (m *MemorySurface) RemoveAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.features = []Feature{}
}

// SurfaceView is what the surface currently shows. Either Center or Bounds
// is set, depending on the last camera call.
type SurfaceView struct {
	Center        *Coords        `json:"center,omitempty"`
	Zoom          int            `json:"zoom,omitempty"`
	Bounds        *Bounds        `json:"bounds,omitempty"`
	BoundsOptions *BoundsOptions `json:"boundsOptions,omitempty"`
	Features      []Feature      `json:"features"`
}

// View returns a copy of the surface state.
func (m *MemorySurface) View() SurfaceView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v := SurfaceView{
		Zoom:     m.zoom,
		Features: append([]Feature{}, m.features...),
	}
	if m.center != nil {
		c := *m.center
		v.Center = &c
	}
	if m.bounds != nil {
		b := *m.bounds
		opts := m.boundsOpts
		v.Bounds = &b
		v.BoundsOptions = &opts
	}
	return v
}
