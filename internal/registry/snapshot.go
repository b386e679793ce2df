package registry

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/m0rjc/DeviceConsole/internal/types"
)

// state is the persisted form of the registry.
type state struct {
	Devices            map[string]types.Device `json:"devices"`
	Groups             []types.Group           `json:"groups"`
	UngroupedDeviceIDs []int                   `json:"ungroupedDeviceIds"`
	OnlineSelected     []selectionRecord       `json:"onlineSelectedDevices"`
	ArchiveSelected    []selectionRecord       `json:"archiveSelectedDevices"`
}

// SnapshotID implements persist.Owner.
func (r *Registry) SnapshotID() string {
	return SnapshotID
}

// MarshalSnapshot serialises the full registry state.
func (r *Registry) MarshalSnapshot() ([]byte, error) {
	r.mu.RLock()
	s := state{
		Devices:            make(map[string]types.Device, len(r.devices)),
		Groups:             make([]types.Group, 0, len(r.groups)),
		UngroupedDeviceIDs: append([]int{}, r.ungrouped...),
		OnlineSelected:     r.online.records(),
		ArchiveSelected:    r.archive.records(),
	}
	for id, d := range r.devices {
		s.Devices[strconv.Itoa(id)] = d
	}
	for _, g := range r.groups {
		s.Groups = append(s.Groups, g.Clone())
	}
	r.mu.RUnlock()

	return json.Marshal(s)
}

// RestoreSnapshot replaces the registry state with a previously marshalled
// snapshot. On error the registry is left unchanged. The ungrouped list is
// derived again rather than trusted. The change hook is not fired.
func (r *Registry) RestoreSnapshot(data []byte) error {
	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding registry snapshot: %w", err)
	}

	devices := make(map[int]types.Device, len(s.Devices))
	for key, d := range s.Devices {
		id, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("decoding registry snapshot: device key %q: %w", key, err)
		}
		d.ID = id
		devices[id] = d
	}
	groups := make([]types.Group, 0, len(s.Groups))
	for _, g := range s.Groups {
		groups = append(groups, g.Clone())
	}
	archive := selectionFromRecords(s.ArchiveSelected)
	if archive.len() > 1 {
		first, _ := archive.first()
		sel, _ := archive.get(first)
		archive = newSelectionSet()
		archive.put(first, *sel)
	}

	r.mu.Lock()
	r.devices = devices
	r.groups = groups
	r.ungrouped = computeUngrouped(devices, groups)
	r.online = selectionFromRecords(s.OnlineSelected)
	r.archive = archive
	r.mu.Unlock()

	r.publishGauges()
	return nil
}
