package console

import (
	"github.com/m0rjc/DeviceConsole/internal/search"
	"github.com/m0rjc/DeviceConsole/internal/types"
)

// TreeDevice is one device row in the sidebar tree.
type TreeDevice struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	Channels        int    `json:"channels"`
	Alarm           bool   `json:"alarm"`
	Selected        bool   `json:"selected"`
	SelectedCameras []int  `json:"selectedCameras"`
	Collapsed       bool   `json:"collapsed"`
	MenuOpen        bool   `json:"menuOpen"`
}

// TreeGroup is one group node with its visible devices.
type TreeGroup struct {
	ID        int          `json:"id"`
	Name      string       `json:"name,omitempty"`
	Collapsed bool         `json:"collapsed"`
	Devices   []TreeDevice `json:"devices"`
}

// Tree is the sidebar as the operator sees it.
type Tree struct {
	Mode      types.Mode   `json:"mode"`
	Query     string       `json:"query"`
	Filtered  bool         `json:"filtered"`
	Groups    []TreeGroup  `json:"groups"`
	Ungrouped []TreeDevice `json:"ungrouped"`
}

// VisibleTree builds the tree for the stored search query.
func (c *Console) VisibleTree() Tree {
	return c.TreeFor(c.state.SearchQuery())
}

// TreeFor builds the tree for query. A blank query shows every group and
// the registry's ungrouped devices.
func (c *Console) TreeFor(query string) Tree {
	mode := c.state.Mode()
	devices := c.registry.Devices()
	result := search.FilterDevices(devices, c.registry.Groups(), query)

	ungrouped := result.FilteredUngrouped
	if !result.Active {
		ungrouped = c.registry.UngroupedDeviceIDs()
	}

	menuID, menuOpen := c.state.ActiveMenuDeviceID()
	row := func(id int) (TreeDevice, bool) {
		d, ok := devices[id]
		if !ok {
			return TreeDevice{}, false
		}
		return TreeDevice{
			ID:              d.ID,
			Name:            d.Name,
			Channels:        d.Channels,
			Alarm:           d.Alarm,
			Selected:        c.registry.IsDeviceSelected(id, mode),
			SelectedCameras: c.registry.SelectedCameras(id, mode),
			Collapsed:       c.state.IsDeviceCollapsed(id),
			MenuOpen:        menuOpen && menuID == id,
		}, true
	}

	tree := Tree{
		Mode:      mode,
		Query:     query,
		Filtered:  result.Active,
		Groups:    make([]TreeGroup, 0, len(result.FilteredGroups)),
		Ungrouped: make([]TreeDevice, 0, len(ungrouped)),
	}
	for _, g := range result.FilteredGroups {
		tg := TreeGroup{
			ID:        g.ID,
			Name:      g.Name,
			Collapsed: c.state.IsGroupCollapsed(g.ID),
			Devices:   make([]TreeDevice, 0, len(g.DeviceIDs)),
		}
		for _, id := range g.DeviceIDs {
			if r, ok := row(id); ok {
				tg.Devices = append(tg.Devices, r)
			}
		}
		tree.Groups = append(tree.Groups, tg)
	}
	for _, id := range ungrouped {
		if r, ok := row(id); ok {
			tree.Ungrouped = append(tree.Ungrouped, r)
		}
	}
	return tree
}
