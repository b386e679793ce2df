// Package appstate holds the console's global view state: the online/archive
// mode, collapsed groups and devices, the open context menu and the search
// query.
package appstate

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/m0rjc/DeviceConsole/internal/types"
)

// SnapshotID names the view state's entry in the snapshot store.
const SnapshotID = "app"

// State is a plain state holder. The zero value is not usable; call New.
type State struct {
	mu               sync.RWMutex
	mode             types.Mode
	collapsedGroups  map[int]bool
	collapsedDevices map[int]bool
	activeMenu       *int
	searchQuery      string

	onChange func()
}

// New returns the initial state: online mode, everything expanded.
func New() *State {
	return &State{
		mode:             types.ModeOnline,
		collapsedGroups:  make(map[int]bool),
		collapsedDevices: make(map[int]bool),
	}
}

// SetOnChange registers fn to be called after every mutation.
func (s *State) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *State) mutate(fn func()) {
	s.mu.Lock()
	fn()
	hook := s.onChange
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (s *State) Mode() types.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *State) IsOnlineMode() bool  { return s.Mode() == types.ModeOnline }
func (s *State) IsArchiveMode() bool { return s.Mode() == types.ModeArchive }

// ToggleMode switches between online and archive and returns the new mode.
func (s *State) ToggleMode() types.Mode {
	var m types.Mode
	s.mutate(func() {
		s.mode = s.mode.Toggle()
		m = s.mode
	})
	return m
}

func (s *State) ToggleGroup(groupID int) {
	s.mutate(func() { s.collapsedGroups[groupID] = !s.collapsedGroups[groupID] })
}

func (s *State) IsGroupCollapsed(groupID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collapsedGroups[groupID]
}

func (s *State) ToggleDevice(deviceID int) {
	s.mutate(func() { s.collapsedDevices[deviceID] = !s.collapsedDevices[deviceID] })
}

func (s *State) IsDeviceCollapsed(deviceID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collapsedDevices[deviceID]
}

// OpenMenu opens the context menu for deviceID, closing any other.
func (s *State) OpenMenu(deviceID int) {
	s.mutate(func() {
		id := deviceID
		s.activeMenu = &id
	})
}

func (s *State) CloseMenu() {
	s.mutate(func() { s.activeMenu = nil })
}

// ActiveMenuDeviceID returns the device whose menu is open, if any.
func (s *State) ActiveMenuDeviceID() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeMenu == nil {
		return 0, false
	}
	return *s.activeMenu, true
}

func (s *State) SetSearchQuery(q string) {
	s.mutate(func() { s.searchQuery = q })
}

func (s *State) SearchQuery() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchQuery
}

// snapshot is the persisted form of State.
type snapshot struct {
	Mode               types.Mode   `json:"mode"`
	CollapsedGroups    map[int]bool `json:"collapsedGroups"`
	CollapsedDevices   map[int]bool `json:"collapsedDevices"`
	ActiveMenuDeviceID *int         `json:"activeMenuDeviceId"`
	SearchQuery        string       `json:"searchQuery"`
}

// SnapshotID implements persist.Owner.
func (s *State) SnapshotID() string {
	return SnapshotID
}

// MarshalSnapshot serialises the full view state.
func (s *State) MarshalSnapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(snapshot{
		Mode:               s.mode,
		CollapsedGroups:    s.collapsedGroups,
		CollapsedDevices:   s.collapsedDevices,
		ActiveMenuDeviceID: s.activeMenu,
		SearchQuery:        s.searchQuery,
	})
}

// RestoreSnapshot replaces the view state. Unknown modes are rejected and
// leave the state untouched.
func (s *State) RestoreSnapshot(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decoding app snapshot: %w", err)
	}
	mode := types.ModeOnline
	if snap.Mode != "" {
		m, err := types.ParseMode(string(snap.Mode))
		if err != nil {
			return fmt.Errorf("decoding app snapshot: %w", err)
		}
		mode = m
	}
	if snap.CollapsedGroups == nil {
		snap.CollapsedGroups = make(map[int]bool)
	}
	if snap.CollapsedDevices == nil {
		snap.CollapsedDevices = make(map[int]bool)
	}

	s.mu.Lock()
	s.mode = mode
	s.collapsedGroups = snap.CollapsedGroups
	s.collapsedDevices = snap.CollapsedDevices
	s.activeMenu = snap.ActiveMenuDeviceID
	s.searchQuery = snap.SearchQuery
	s.mu.Unlock()
	return nil
}
