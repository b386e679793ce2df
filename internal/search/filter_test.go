package search

import (
	"testing"

	"github.com/m0rjc/DeviceConsole/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() (map[int]types.Device, []types.Group) {
	devices := map[int]types.Device{
		1:   {ID: 1, Name: "Gate North"},
		2:   {ID: 2, Name: "Gate South"},
		3:   {ID: 3, Name: "Parking"},
		15:  {ID: 15, Name: "Lobby"},
		101: {ID: 101, Name: "Roof"},
	}
	groups := []types.Group{
		{ID: 1, Name: "Gates", DeviceIDs: []int{1, 2}},
		{ID: 2, Name: "Inside", DeviceIDs: []int{15, 404}},
	}
	return devices, groups
}

func TestFilterDevices_BlankQueryIsInactive(t *testing.T) {
	devices, groups := fixture()

	for _, q := range []string{"", "   "} {
		res := FilterDevices(devices, groups, q)
		assert.False(t, res.Active)
		assert.Equal(t, groups, res.FilteredGroups)
		assert.Empty(t, res.FilteredUngrouped)
		require.Len(t, res.FilteredGroups, 2)
		assert.Same(t, &groups[0], &res.FilteredGroups[0], "groups are returned unmodified")
	}
}

func TestFilterDevices_NoMatch(t *testing.T) {
	devices, groups := fixture()
	res := FilterDevices(devices, groups, "zzz-no-match")
	assert.True(t, res.Active)
	assert.Empty(t, res.FilteredGroups)
	assert.Empty(t, res.FilteredUngrouped)
}

func TestFilterDevices_NameMatchIsCaseInsensitive(t *testing.T) {
	devices, groups := fixture()
	res := FilterDevices(devices, groups, "GATE")
	require.Len(t, res.FilteredGroups, 1)
	assert.Equal(t, "Gates", res.FilteredGroups[0].Name)
	assert.Equal(t, []int{1, 2}, res.FilteredGroups[0].DeviceIDs)
	assert.Empty(t, res.FilteredUngrouped)
}

func TestFilterDevices_IDSubstring(t *testing.T) {
	devices, groups := fixture()
	res := FilterDevices(devices, groups, "1")
	require.Len(t, res.FilteredGroups, 2)
	assert.Equal(t, []int{1}, res.FilteredGroups[0].DeviceIDs)
	assert.Equal(t, []int{15}, res.FilteredGroups[1].DeviceIDs, "missing device 404 never matches")
	assert.Equal(t, []int{101}, res.FilteredUngrouped)
}

func TestFilterDevices_DoesNotMutateInput(t *testing.T) {
	devices, groups := fixture()
	FilterDevices(devices, groups, "north")
	assert.Equal(t, []int{1, 2}, groups[0].DeviceIDs)
}

func TestFilterDevices_UngroupedOnly(t *testing.T) {
	devices, groups := fixture()
	res := FilterDevices(devices, groups, "park")
	assert.Empty(t, res.FilteredGroups)
	assert.Equal(t, []int{3}, res.FilteredUngrouped)
}

func TestFilterDevices_SurroundingSpacesAreMatched(t *testing.T) {
	devices, groups := fixture()

	res := FilterDevices(devices, groups, "roof ")
	assert.True(t, res.Active)
	assert.Empty(t, res.FilteredGroups)
	assert.Empty(t, res.FilteredUngrouped)

	res = FilterDevices(devices, groups, " north")
	require.Len(t, res.FilteredGroups, 1)
	assert.Equal(t, []int{1}, res.FilteredGroups[0].DeviceIDs)
	assert.Empty(t, res.FilteredUngrouped)
}
