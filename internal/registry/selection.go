package registry

import (
	"slices"

	"github.com/m0rjc/DeviceConsole/internal/types"
)

// selectionSet is a per-mode selection mapping that remembers insertion order.
type selectionSet struct {
	order   []int
	entries map[int]*types.Selection
}

func newSelectionSet() *selectionSet {
	return &selectionSet{entries: make(map[int]*types.Selection)}
}

func (s *selectionSet) has(id int) bool {
	_, ok := s.entries[id]
	return ok
}

func (s *selectionSet) get(id int) (*types.Selection, bool) {
	sel, ok := s.entries[id]
	return sel, ok
}

func (s *selectionSet) put(id int, sel types.Selection) {
	if !s.has(id) {
		s.order = append(s.order, id)
	}
	s.entries[id] = &sel
}

func (s *selectionSet) remove(id int) {
	if !s.has(id) {
		return
	}
	delete(s.entries, id)
	s.order = slices.DeleteFunc(s.order, func(v int) bool { return v == id })
}

func (s *selectionSet) clear() {
	s.order = nil
	s.entries = make(map[int]*types.Selection)
}

func (s *selectionSet) len() int {
	return len(s.order)
}

// first returns the earliest inserted id.
func (s *selectionSet) first() (int, bool) {
	if len(s.order) == 0 {
		return 0, false
	}
	return s.order[0], true
}

func (s *selectionSet) ids() []int {
	return append([]int{}, s.order...)
}

// toggleCamera adds or removes camera from id's entry, keeping it sorted.
func (s *selectionSet) toggleCamera(id, camera int) bool {
	sel, ok := s.entries[id]
	if !ok {
		return false
	}
	if i, found := slices.BinarySearch(sel.Cameras, camera); found {
		sel.Cameras = slices.Delete(append([]int{}, sel.Cameras...), i, i+1)
	} else {
		sel.Cameras = slices.Insert(append([]int{}, sel.Cameras...), i, camera)
	}
	return true
}

// selectionRecord is the persisted form of one selection entry.
type selectionRecord struct {
	DeviceID int   `json:"deviceId"`
	Cameras  []int `json:"cameras"`
}

func (s *selectionSet) records() []selectionRecord {
	out := make([]selectionRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, selectionRecord{DeviceID: id, Cameras: s.entries[id].Clone().Cameras})
	}
	return out
}

func selectionFromRecords(recs []selectionRecord) *selectionSet {
	s := newSelectionSet()
	for _, r := range recs {
		cams := append([]int{}, r.Cameras...)
		slices.Sort(cams)
		s.put(r.DeviceID, types.Selection{Cameras: slices.Compact(cams)})
	}
	return s
}
