// Package registry holds the authoritative in-memory store of devices,
// groups and the per-mode selection state of the console.
package registry

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/m0rjc/DeviceConsole/internal/metrics"
	"github.com/m0rjc/DeviceConsole/internal/types"
)

// SnapshotID names the registry's entry in the snapshot store.
const SnapshotID = "devices"

// Registry owns devices, groups and both selection mappings.
// All public methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	devices   map[int]types.Device
	groups    []types.Group
	ungrouped []int
	online    *selectionSet
	archive   *selectionSet

	onChange func()
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		devices:   make(map[int]types.Device),
		groups:    []types.Group{},
		ungrouped: []int{},
		online:    newSelectionSet(),
		archive:   newSelectionSet(),
	}
}

// SetOnChange registers fn to be called after every mutation.
// fn runs outside the registry lock.
func (r *Registry) SetOnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// changed publishes gauges and fires the change hook. Callers must not hold mu.
func (r *Registry) changed() {
	r.publishGauges()

	r.mu.RLock()
	fn := r.onChange
	r.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (r *Registry) publishGauges() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	metrics.RegistryDevices.Set(float64(len(r.devices)))
	metrics.RegistryGroups.Set(float64(len(r.groups)))
	metrics.SelectedDevices.WithLabelValues(string(types.ModeOnline)).Set(float64(r.online.len()))
	metrics.SelectedDevices.WithLabelValues(string(types.ModeArchive)).Set(float64(r.archive.len()))
}

func (r *Registry) selection(mode types.Mode) *selectionSet {
	if mode == types.ModeArchive {
		return r.archive
	}
	return r.online
}

// SetDevicesData replaces all devices and groups and recomputes the
// ungrouped device list. Selections are left untouched.
func (r *Registry) SetDevicesData(devices map[int]types.Device, groups []types.Group) {
	newDevices := make(map[int]types.Device, len(devices))
	for id, d := range devices {
		newDevices[id] = d
	}
	newGroups := make([]types.Group, 0, len(groups))
	for _, g := range groups {
		newGroups = append(newGroups, g.Clone())
	}
	ungrouped := computeUngrouped(newDevices, newGroups)

	r.mu.Lock()
	r.devices = newDevices
	r.groups = newGroups
	r.ungrouped = ungrouped
	r.mu.Unlock()

	slog.Info("registry.devices_loaded",
		"component", "registry",
		"event", "devices.loaded",
		"devices", len(newDevices),
		"groups", len(newGroups),
		"ungrouped", len(ungrouped),
	)
	r.changed()
}

// computeUngrouped returns every device id not named by any group, ascending.
func computeUngrouped(devices map[int]types.Device, groups []types.Group) []int {
	grouped := make(map[int]struct{})
	for _, g := range groups {
		for _, id := range g.DeviceIDs {
			grouped[id] = struct{}{}
		}
	}
	out := []int{}
	for id := range devices {
		if _, ok := grouped[id]; !ok {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// ToggleDeviceSelection selects or deselects a device in the given mode.
//
// Online mode keeps any number of independent selections. Archive mode keeps
// at most one: choosing another device replaces the selection and carries
// the previous device's cameras over to the new one.
func (r *Registry) ToggleDeviceSelection(deviceID int, mode types.Mode) {
	r.mu.Lock()
	if mode == types.ModeArchive {
		prev, hasPrev := r.archive.first()
		if hasPrev && prev == deviceID {
			r.archive.clear()
		} else {
			carried := types.Selection{Cameras: []int{}}
			if hasPrev {
				if sel, ok := r.archive.get(prev); ok {
					carried = sel.Clone()
				}
			}
			r.archive.clear()
			r.archive.put(deviceID, carried)
		}
	} else {
		if r.online.has(deviceID) {
			r.online.remove(deviceID)
		} else {
			r.online.put(deviceID, types.Selection{Cameras: []int{}})
		}
	}
	r.mu.Unlock()

	r.changed()
}

// ToggleCameraSelection adds or removes a camera for a selected device.
// It does nothing when the device is not selected in mode.
func (r *Registry) ToggleCameraSelection(deviceID, camera int, mode types.Mode) {
	r.mu.Lock()
	ok := r.selection(mode).toggleCamera(deviceID, camera)
	r.mu.Unlock()

	if ok {
		r.changed()
	}
}

// RemoveDevice deletes a device everywhere it is referenced. Groups that
// become empty are kept.
func (r *Registry) RemoveDevice(deviceID int) {
	r.mu.Lock()
	delete(r.devices, deviceID)
	r.online.remove(deviceID)
	r.archive.remove(deviceID)
	for i := range r.groups {
		r.groups[i].DeviceIDs = slices.DeleteFunc(slices.Clone(r.groups[i].DeviceIDs), func(id int) bool {
			return id == deviceID
		})
	}
	r.ungrouped = slices.DeleteFunc(r.ungrouped, func(id int) bool { return id == deviceID })
	r.mu.Unlock()

	slog.Debug("registry.device_removed",
		"component", "registry",
		"event", "device.removed",
		"device_id", deviceID,
	)
	r.changed()
}

// UpdateDevice merges patch into an existing device. It reports whether the
// device existed; an unknown id is not an error.
func (r *Registry) UpdateDevice(deviceID int, patch types.DevicePatch) bool {
	r.mu.Lock()
	d, ok := r.devices[deviceID]
	if ok {
		r.devices[deviceID] = patch.Apply(d)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.changed()
	return true
}

// ClearOnlineSelection empties the online selection.
func (r *Registry) ClearOnlineSelection() {
	r.mu.Lock()
	r.online.clear()
	r.mu.Unlock()
	r.changed()
}

// ClearArchiveSelection empties the archive selection.
func (r *Registry) ClearArchiveSelection() {
	r.mu.Lock()
	r.archive.clear()
	r.mu.Unlock()
	r.changed()
}

// DevicesForMapByMode returns the devices selected in mode, in selection
// order, each with its selected cameras. Archive devices never report an
// alarm; the stored device is not modified.
func (r *Registry) DevicesForMapByMode(mode types.Mode) []types.MapDevice {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sel := r.selection(mode)
	out := make([]types.MapDevice, 0, sel.len())
	for _, id := range sel.order {
		d, ok := r.devices[id]
		if !ok {
			continue
		}
		if mode == types.ModeArchive {
			d.Alarm = false
		}
		entry, _ := sel.get(id)
		out = append(out, types.MapDevice{Device: d, SelectedCameras: entry.Clone().Cameras})
	}
	return out
}

// IsDeviceSelected reports whether deviceID is selected in mode.
func (r *Registry) IsDeviceSelected(deviceID int, mode types.Mode) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selection(mode).has(deviceID)
}

// SelectedCameras returns the cameras chosen for deviceID in mode, or an
// empty list when the device is not selected.
func (r *Registry) SelectedCameras(deviceID int, mode types.Mode) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sel, ok := r.selection(mode).get(deviceID); ok {
		return sel.Clone().Cameras
	}
	return []int{}
}

// SelectedDeviceIDs returns the ids selected in mode in insertion order.
func (r *Registry) SelectedDeviceIDs(mode types.Mode) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selection(mode).ids()
}

// ArchiveSelectedDeviceID returns the single archive selection, if any.
func (r *Registry) ArchiveSelectedDeviceID() (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.archive.first()
}

// Devices returns a copy of the device mapping.
func (r *Registry) Devices() map[int]types.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int]types.Device, len(r.devices))
	for id, d := range r.devices {
		out[id] = d
	}
	return out
}

// Device looks up a single device.
func (r *Registry) Device(deviceID int) (types.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[deviceID]
	return d, ok
}

// Groups returns a copy of the group list.
func (r *Registry) Groups() []types.Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g.Clone())
	}
	return out
}

// UngroupedDeviceIDs returns the ids of devices that belong to no group.
func (r *Registry) UngroupedDeviceIDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]int{}, r.ungrouped...)
}
