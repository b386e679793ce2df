package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m0rjc/DeviceConsole/internal/appstate"
	"github.com/m0rjc/DeviceConsole/internal/console"
	"github.com/m0rjc/DeviceConsole/internal/feed"
	"github.com/m0rjc/DeviceConsole/internal/mapview"
	"github.com/m0rjc/DeviceConsole/internal/registry"
	"github.com/m0rjc/DeviceConsole/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeed struct {
	connected bool
	connects  int
	err       error
}

func (f *fakeFeed) IsConnected() bool { return f.connected }

func (f *fakeFeed) Connect(context.Context) error {
	f.connects++
	if f.err != nil {
		return f.err
	}
	if f.connected {
		return feed.ErrAlreadyConnected
	}
	f.connected = true
	return nil
}

func setupAPI(t *testing.T) (*Dependencies, http.Handler) {
	t.Helper()
	surface := mapview.NewMemorySurface()
	mapSync := mapview.NewSynchronizer()
	mapSync.SetSurface(surface)
	mapSync.SetObjectManager(surface)

	c := console.New(registry.New(), appstate.New(), mapSync)
	c.SetDevicesData(map[int]types.Device{
		1: {ID: 1, Name: "North Gate", Channels: 2, Lat: 55.70, Lon: 37.50},
		2: {ID: 2, Name: "Loading Bay", Channels: 4, Lat: 55.80, Lon: 37.70, Alarm: true},
		3: {ID: 3, Name: "Roof", Channels: 1, Lat: 55.75, Lon: 37.60},
	}, []types.Group{{ID: 7, Name: "Perimeter", DeviceIDs: []int{1, 2}}})

	deps := &Dependencies{Console: c, Feed: &fakeFeed{connected: true}, Surface: surface}
	mux := http.NewServeMux()
	RegisterAPI(mux, deps)
	return deps, mux
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestGetDevices(t *testing.T) {
	_, h := setupAPI(t)

	rec := do(t, h, http.MethodGet, "/api/v1/devices", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[DevicesResponse](t, rec)
	assert.Len(t, resp.Devices, 3)
	assert.Equal(t, "Roof", resp.Devices[3].Name)
	assert.Equal(t, []int{3}, resp.UngroupedDeviceIDs)
}

func TestSelectAndCameraFlow(t *testing.T) {
	deps, h := setupAPI(t)

	rec := do(t, h, http.MethodPost, "/api/v1/devices/2/cameras/1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "camera toggle needs a selected device")

	rec = do(t, h, http.MethodPost, "/api/v1/devices/2/select", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sel := decode[SelectionResponse](t, rec)
	assert.True(t, sel.Selected)
	assert.Equal(t, types.ModeOnline, sel.Mode)
	assert.Equal(t, []int{}, sel.SelectedCameras)

	rec = do(t, h, http.MethodPost, "/api/v1/devices/2/cameras/3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{3}, decode[SelectionResponse](t, rec).SelectedCameras)

	rec = do(t, h, http.MethodPost, "/api/v1/devices/2/cameras/5", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "device 2 has four channels")

	rec = do(t, h, http.MethodGet, "/api/v1/map", "")
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode[MapResponse](t, rec)
	require.Len(t, m.View.Features, 1)
	assert.Equal(t, 2, m.View.Features[0].ID)
	assert.Equal(t, mapview.SingleDeviceZoom, m.Camera.Zoom)

	assert.Equal(t, []int{2}, deps.Console.Registry().SelectedDeviceIDs(types.ModeOnline))
}

func TestModeToggleAndClear(t *testing.T) {
	_, h := setupAPI(t)

	do(t, h, http.MethodPost, "/api/v1/devices/1/select", "")

	rec := do(t, h, http.MethodPost, "/api/v1/mode/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[StateResponse](t, rec)
	assert.Equal(t, types.ModeArchive, state.Mode)
	assert.Equal(t, []int{1}, state.OnlineSelected)
	assert.Empty(t, state.ArchiveSelected)
	assert.True(t, state.Connected)

	do(t, h, http.MethodPost, "/api/v1/devices/3/select", "")
	rec = do(t, h, http.MethodPost, "/api/v1/selection/clear", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	state = decode[StateResponse](t, do(t, h, http.MethodGet, "/api/v1/state", ""))
	assert.Empty(t, state.ArchiveSelected)
	assert.Equal(t, []int{1}, state.OnlineSelected)
}

func TestSearchAndTree(t *testing.T) {
	_, h := setupAPI(t)

	rec := do(t, h, http.MethodPut, "/api/v1/search", `{"query":"gate"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	tree := decode[console.Tree](t, rec)
	assert.True(t, tree.Filtered)
	require.Len(t, tree.Groups, 1)
	require.Len(t, tree.Groups[0].Devices, 1)
	assert.Equal(t, "North Gate", tree.Groups[0].Devices[0].Name)

	tree = decode[console.Tree](t, do(t, h, http.MethodGet, "/api/v1/tree?q=roof", ""))
	assert.Empty(t, tree.Groups)
	require.Len(t, tree.Ungrouped, 1)

	tree = decode[console.Tree](t, do(t, h, http.MethodGet, "/api/v1/tree", ""))
	assert.Equal(t, "gate", tree.Query, "q parameter does not replace the stored query")

	rec = do(t, h, http.MethodPut, "/api/v1/search", `{"query":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatchAndDeleteDevice(t *testing.T) {
	deps, h := setupAPI(t)

	rec := do(t, h, http.MethodPatch, "/api/v1/devices/1", `{"name":"South Gate","alarm":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[types.Device](t, rec)
	assert.Equal(t, "South Gate", d.Name)
	assert.True(t, d.Alarm)
	assert.Equal(t, 2, d.Channels)

	rec = do(t, h, http.MethodPatch, "/api/v1/devices/1", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/devices/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := deps.Console.Registry().Device(1)
	assert.False(t, ok)
	assert.Equal(t, []int{2}, deps.Console.Registry().Groups()[0].DeviceIDs)

	rec = do(t, h, http.MethodDelete, "/api/v1/devices/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "device_not_found", decode[ErrorResponse](t, rec).Error)
}

func TestCollapseAndMenu(t *testing.T) {
	_, h := setupAPI(t)

	rec := do(t, h, http.MethodPost, "/api/v1/groups/7/collapse", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, CollapseResponse{ID: 7, Collapsed: true}, decode[CollapseResponse](t, rec))

	rec = do(t, h, http.MethodPost, "/api/v1/devices/3/collapse", "")
	assert.Equal(t, CollapseResponse{ID: 3, Collapsed: true}, decode[CollapseResponse](t, rec))

	rec = do(t, h, http.MethodPost, "/api/v1/devices/2/menu", "")
	state := decode[StateResponse](t, rec)
	require.NotNil(t, state.ActiveMenuDeviceID)
	assert.Equal(t, 2, *state.ActiveMenuDeviceID)

	rec = do(t, h, http.MethodDelete, "/api/v1/menu", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	state = decode[StateResponse](t, do(t, h, http.MethodGet, "/api/v1/state", ""))
	assert.Nil(t, state.ActiveMenuDeviceID)
}

func TestBadPathValues(t *testing.T) {
	_, h := setupAPI(t)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/devices/abc/select", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/groups/-1/collapse", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/v1/devices/99/select", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/v1/mode/toggle", "").Code)
}

func TestConnectFeed(t *testing.T) {
	deps, h := setupAPI(t)
	f := &fakeFeed{}
	deps.Feed = f

	rec := do(t, h, http.MethodPost, "/api/v1/feed/connect", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[StateResponse](t, rec).Connected)

	rec = do(t, h, http.MethodPost, "/api/v1/feed/connect", "")
	assert.Equal(t, http.StatusOK, rec.Code, "already connected is not an error")
	assert.Equal(t, 2, f.connects)

	deps.Feed = &fakeFeed{err: errors.New("dial refused")}
	rec = do(t, h, http.MethodPost, "/api/v1/feed/connect", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "feed_connect_failed", decode[ErrorResponse](t, rec).Error)
}
