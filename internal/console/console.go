// Package console ties the registry, view state and map together the way
// the operator's page uses them: selection follows the current mode and the
// map is redrawn after every change that affects what it shows.
package console

import (
	"log/slog"
	"sync"

	"github.com/m0rjc/DeviceConsole/internal/appstate"
	"github.com/m0rjc/DeviceConsole/internal/mapview"
	"github.com/m0rjc/DeviceConsole/internal/registry"
	"github.com/m0rjc/DeviceConsole/internal/types"
)

// Console orchestrates the state owners. It also implements feed.DeviceStore
// so feed updates redraw the map. Each mutation and the redraw that follows
// it run under one lock, so the map never mixes two modes' selections.
type Console struct {
	mu sync.Mutex

	registry *registry.Registry
	state    *appstate.State
	mapSync  *mapview.Synchronizer
}

// New creates a console over existing owners.
func New(reg *registry.Registry, state *appstate.State, mapSync *mapview.Synchronizer) *Console {
	return &Console{
		registry: reg,
		state:    state,
		mapSync:  mapSync,
	}
}

func (c *Console) Registry() *registry.Registry { return c.registry }
func (c *Console) State() *appstate.State       { return c.state }
func (c *Console) Map() *mapview.Synchronizer   { return c.mapSync }

// SyncMap redraws placemarks for the current mode's selection and fits the
// camera to them.
func (c *Console) SyncMap() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncMap()
}

// syncMap must be called with c.mu held.
func (c *Console) syncMap() {
	mode := c.state.Mode()
	devices := c.registry.DevicesForMapByMode(mode)
	c.mapSync.AddDevicePlacemarks(devices)
	c.mapSync.FitToDevices(devices)
	slog.Debug("console.map_synced",
		"component", "console",
		"event", "map.synced",
		"mode", mode,
		"devices", len(devices),
	)
}

// ToggleDevice toggles a device's selection in the current mode.
func (c *Console) ToggleDevice(deviceID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry.ToggleDeviceSelection(deviceID, c.state.Mode())
	c.syncMap()
}

// ToggleCamera toggles one camera of a device selected in the current mode.
func (c *Console) ToggleCamera(deviceID, camera int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry.ToggleCameraSelection(deviceID, camera, c.state.Mode())
	c.syncMap()
}

// ClearSelection clears the current mode's selection.
func (c *Console) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.IsArchiveMode() {
		c.registry.ClearArchiveSelection()
	} else {
		c.registry.ClearOnlineSelection()
	}
	c.syncMap()
}

// ToggleMode switches between online and archive and redraws the map for
// the new mode's selection.
func (c *Console) ToggleMode() types.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	mode := c.state.ToggleMode()
	c.syncMap()
	return mode
}

// IsSelected reports whether a device is selected in the current mode.
func (c *Console) IsSelected(deviceID int) bool {
	return c.registry.IsDeviceSelected(deviceID, c.state.Mode())
}

// SetDevicesData replaces the device list and redraws the map.
func (c *Console) SetDevicesData(devices map[int]types.Device, groups []types.Group) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry.SetDevicesData(devices, groups)
	c.syncMap()
}

// UpdateDevice patches a device and redraws the map if it was found.
func (c *Console) UpdateDevice(deviceID int, patch types.DevicePatch) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.registry.UpdateDevice(deviceID, patch) {
		return false
	}
	c.syncMap()
	return true
}

// RemoveDevice deletes a device and redraws the map.
func (c *Console) RemoveDevice(deviceID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry.RemoveDevice(deviceID)
	if id, ok := c.state.ActiveMenuDeviceID(); ok && id == deviceID {
		c.state.CloseMenu()
	}
	c.syncMap()
}
