package types

// Device is one monitored unit as delivered by the feed.
type Device struct {
	ID        int     `json:"id" yaml:"id"`
	Name      string  `json:"name" yaml:"name"`
	Channels  int     `json:"channels" yaml:"channels"`
	Lat       float64 `json:"lat" yaml:"lat"`
	Lon       float64 `json:"lon" yaml:"lon"`
	Timestamp string  `json:"timestamp" yaml:"timestamp"`
	Alarm     bool    `json:"alarm" yaml:"alarm"`
}

// DevicePatch carries a partial device update. Nil fields are left untouched.
// The device id is never patched.
type DevicePatch struct {
	Name      *string  `json:"name,omitempty"`
	Channels  *int     `json:"channels,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
	Lon       *float64 `json:"lon,omitempty"`
	Timestamp *string  `json:"timestamp,omitempty"`
	Alarm     *bool    `json:"alarm,omitempty"`
}

// Apply merges the set fields of p into d and returns the result.
func (p DevicePatch) Apply(d Device) Device {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Channels != nil {
		d.Channels = *p.Channels
	}
	if p.Lat != nil {
		d.Lat = *p.Lat
	}
	if p.Lon != nil {
		d.Lon = *p.Lon
	}
	if p.Timestamp != nil {
		d.Timestamp = *p.Timestamp
	}
	if p.Alarm != nil {
		d.Alarm = *p.Alarm
	}
	return d
}

// IsEmpty reports whether the patch sets no field.
func (p DevicePatch) IsEmpty() bool {
	return p.Name == nil && p.Channels == nil && p.Lat == nil &&
		p.Lon == nil && p.Timestamp == nil && p.Alarm == nil
}

// Group is a named collection of device references. DeviceIDs may name
// devices that do not exist and may overlap with other groups.
type Group struct {
	ID        int    `json:"id" yaml:"id"`
	Name      string `json:"name,omitempty" yaml:"name"`
	DeviceIDs []int  `json:"deviceIds" yaml:"deviceIds"`
}

// Clone returns a copy of g with its own DeviceIDs slice.
func (g Group) Clone() Group {
	ids := make([]int, len(g.DeviceIDs))
	copy(ids, g.DeviceIDs)
	g.DeviceIDs = ids
	return g
}

// MapDevice is a selected device as shown on the map: the stored device
// plus the cameras chosen for it in the current mode.
type MapDevice struct {
	Device
	SelectedCameras []int `json:"selectedCameras"`
}
