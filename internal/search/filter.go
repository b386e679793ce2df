// Package search derives the filtered device tree shown for a free-text query.
package search

import (
	"slices"
	"strconv"
	"strings"

	"github.com/m0rjc/DeviceConsole/internal/types"
)

// Result is the outcome of FilterDevices.
//
// Active is false when the query was blank: FilteredGroups is then the input
// group list unmodified and FilteredUngrouped is empty, which callers must not
// confuse with a query that matched nothing.
type Result struct {
	FilteredGroups    []types.Group `json:"filteredGroups"`
	FilteredUngrouped []int         `json:"filteredUngrouped"`
	Active            bool          `json:"active"`
}

// FilterDevices matches devices whose name or decimal id contains query,
// ignoring case. Groups keep only matching members and are dropped when
// none match; ungrouped devices are filtered independently.
func FilterDevices(devices map[int]types.Device, groups []types.Group, query string) Result {
	if strings.TrimSpace(query) == "" {
		return Result{FilteredGroups: groups, FilteredUngrouped: []int{}}
	}
	q := strings.ToLower(query)

	matches := func(id int) bool {
		d, ok := devices[id]
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(d.Name), q) ||
			strings.Contains(strconv.Itoa(d.ID), q)
	}

	filteredGroups := []types.Group{}
	grouped := make(map[int]struct{})
	for _, g := range groups {
		kept := []int{}
		for _, id := range g.DeviceIDs {
			grouped[id] = struct{}{}
			if matches(id) {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			continue
		}
		fg := g
		fg.DeviceIDs = kept
		filteredGroups = append(filteredGroups, fg)
	}

	filteredUngrouped := []int{}
	for id := range devices {
		if _, ok := grouped[id]; ok {
			continue
		}
		if matches(id) {
			filteredUngrouped = append(filteredUngrouped, id)
		}
	}
	slices.Sort(filteredUngrouped)

	return Result{
		FilteredGroups:    filteredGroups,
		FilteredUngrouped: filteredUngrouped,
		Active:            true,
	}
}
