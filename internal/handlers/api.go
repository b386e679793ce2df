package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/m0rjc/DeviceConsole/internal/feed"
	"github.com/m0rjc/DeviceConsole/internal/mapview"
	"github.com/m0rjc/DeviceConsole/internal/types"
)

// DevicesResponse is the raw registry content.
type DevicesResponse struct {
	Devices            map[int]types.Device `json:"devices"`
	Groups             []types.Group        `json:"groups"`
	UngroupedDeviceIDs []int                `json:"ungroupedDeviceIds"`
}

// StateResponse summarises the console's view state.
type StateResponse struct {
	Mode               types.Mode `json:"mode"`
	SearchQuery        string     `json:"searchQuery"`
	ActiveMenuDeviceID *int       `json:"activeMenuDeviceId"`
	OnlineSelected     []int      `json:"onlineSelectedDeviceIds"`
	ArchiveSelected    []int      `json:"archiveSelectedDeviceIds"`
	Connected          bool       `json:"connected"`
}

// SelectionResponse describes one device's selection in the current mode.
type SelectionResponse struct {
	DeviceID        int        `json:"deviceId"`
	Mode            types.Mode `json:"mode"`
	Selected        bool       `json:"selected"`
	SelectedCameras []int      `json:"selectedCameras"`
}

// CollapseResponse reports a tree node's collapsed flag after a toggle.
type CollapseResponse struct {
	ID        int  `json:"id"`
	Collapsed bool `json:"collapsed"`
}

// MapResponse is the camera plus what the map surface shows.
type MapResponse struct {
	Camera mapview.Camera      `json:"camera"`
	View   mapview.SurfaceView `json:"view"`
}

// SearchRequest is the body of PUT /api/v1/search.
type SearchRequest struct {
	Query string `json:"query"`
}

// GetDevicesHandler handles GET /api/v1/devices.
func GetDevicesHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg := deps.Console.Registry()
		writeJSON(w, DevicesResponse{
			Devices:            reg.Devices(),
			Groups:             reg.Groups(),
			UngroupedDeviceIDs: reg.UngroupedDeviceIDs(),
		})
	}
}

// GetTreeHandler handles GET /api/v1/tree. A q parameter overrides the
// stored search query without changing it.
func GetTreeHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("q") {
			writeJSON(w, deps.Console.TreeFor(r.URL.Query().Get("q")))
			return
		}
		writeJSON(w, deps.Console.VisibleTree())
	}
}

// GetStateHandler handles GET /api/v1/state.
func GetStateHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, buildState(deps))
	}
}

func buildState(deps *Dependencies) StateResponse {
	state := deps.Console.State()
	reg := deps.Console.Registry()
	resp := StateResponse{
		Mode:            state.Mode(),
		SearchQuery:     state.SearchQuery(),
		OnlineSelected:  reg.SelectedDeviceIDs(types.ModeOnline),
		ArchiveSelected: reg.SelectedDeviceIDs(types.ModeArchive),
		Connected:       deps.Feed != nil && deps.Feed.IsConnected(),
	}
	if id, ok := state.ActiveMenuDeviceID(); ok {
		resp.ActiveMenuDeviceID = &id
	}
	return resp
}

// ToggleModeHandler handles POST /api/v1/mode/toggle.
func ToggleModeHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := deps.Console.ToggleMode()
		slog.Info("api.mode.toggled",
			"component", "api",
			"event", "mode.toggled",
			"mode", mode,
		)
		writeJSON(w, buildState(deps))
	}
}

// SetSearchHandler handles PUT /api/v1/search and returns the resulting tree.
func SetSearchHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
			return
		}
		deps.Console.State().SetSearchQuery(req.Query)
		writeJSON(w, deps.Console.VisibleTree())
	}
}

// requireDevice parses the {id} path value and checks the device exists.
func requireDevice(deps *Dependencies, w http.ResponseWriter, r *http.Request) (types.Device, bool) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_device_id", err.Error())
		return types.Device{}, false
	}
	d, ok := deps.Console.Registry().Device(id)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "device_not_found", "Device "+strconv.Itoa(id)+" not found")
		return types.Device{}, false
	}
	return d, true
}

func selectionOf(deps *Dependencies, deviceID int) SelectionResponse {
	mode := deps.Console.State().Mode()
	reg := deps.Console.Registry()
	return SelectionResponse{
		DeviceID:        deviceID,
		Mode:            mode,
		Selected:        reg.IsDeviceSelected(deviceID, mode),
		SelectedCameras: reg.SelectedCameras(deviceID, mode),
	}
}

// SelectDeviceHandler handles POST /api/v1/devices/{id}/select.
func SelectDeviceHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := requireDevice(deps, w, r)
		if !ok {
			return
		}
		deps.Console.ToggleDevice(d.ID)
		writeJSON(w, selectionOf(deps, d.ID))
	}
}

// ToggleCameraHandler handles POST /api/v1/devices/{id}/cameras/{camera}.
// Cameras are numbered from 1 to the device's channel count.
func ToggleCameraHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := requireDevice(deps, w, r)
		if !ok {
			return
		}
		camera, err := pathInt(r, "camera")
		if err != nil || camera > d.Channels {
			writeJSONError(w, http.StatusBadRequest, "invalid_camera", "Camera must be between 1 and "+strconv.Itoa(d.Channels))
			return
		}
		if !deps.Console.IsSelected(d.ID) {
			writeJSONError(w, http.StatusBadRequest, "device_not_selected", "Select the device before choosing cameras")
			return
		}
		deps.Console.ToggleCamera(d.ID, camera)
		writeJSON(w, selectionOf(deps, d.ID))
	}
}

// PatchDeviceHandler handles PATCH /api/v1/devices/{id}.
func PatchDeviceHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := requireDevice(deps, w, r)
		if !ok {
			return
		}
		var patch types.DevicePatch
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16384)).Decode(&patch); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
			return
		}
		if patch.IsEmpty() {
			writeJSONError(w, http.StatusBadRequest, "empty_patch", "No fields to update")
			return
		}
		if !deps.Console.UpdateDevice(d.ID, patch) {
			writeJSONError(w, http.StatusNotFound, "device_not_found", "Device "+strconv.Itoa(d.ID)+" not found")
			return
		}
		updated, _ := deps.Console.Registry().Device(d.ID)
		slog.Info("api.device.updated",
			"component", "api",
			"event", "device.updated",
			"device_id", d.ID,
		)
		writeJSON(w, updated)
	}
}

// DeleteDeviceHandler handles DELETE /api/v1/devices/{id}.
func DeleteDeviceHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := requireDevice(deps, w, r)
		if !ok {
			return
		}
		deps.Console.RemoveDevice(d.ID)
		slog.Info("api.device.removed",
			"component", "api",
			"event", "device.removed",
			"device_id", d.ID,
		)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ClearSelectionHandler handles POST /api/v1/selection/clear.
func ClearSelectionHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Console.ClearSelection()
		w.WriteHeader(http.StatusNoContent)
	}
}

// ToggleGroupCollapseHandler handles POST /api/v1/groups/{id}/collapse.
// Unknown groups are accepted; the flag is kept for when they appear.
func ToggleGroupCollapseHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathInt(r, "id")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_group_id", err.Error())
			return
		}
		state := deps.Console.State()
		state.ToggleGroup(id)
		writeJSON(w, CollapseResponse{ID: id, Collapsed: state.IsGroupCollapsed(id)})
	}
}

// ToggleDeviceCollapseHandler handles POST /api/v1/devices/{id}/collapse.
func ToggleDeviceCollapseHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := requireDevice(deps, w, r)
		if !ok {
			return
		}
		state := deps.Console.State()
		state.ToggleDevice(d.ID)
		writeJSON(w, CollapseResponse{ID: d.ID, Collapsed: state.IsDeviceCollapsed(d.ID)})
	}
}

// OpenMenuHandler handles POST /api/v1/devices/{id}/menu.
func OpenMenuHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := requireDevice(deps, w, r)
		if !ok {
			return
		}
		deps.Console.State().OpenMenu(d.ID)
		writeJSON(w, buildState(deps))
	}
}

// CloseMenuHandler handles DELETE /api/v1/menu.
func CloseMenuHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Console.State().CloseMenu()
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetMapHandler handles GET /api/v1/map.
func GetMapHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := MapResponse{
			Camera: deps.Console.Map().Camera(),
			View:   mapview.SurfaceView{Features: []mapview.Feature{}},
		}
		if deps.Surface != nil {
			resp.View = deps.Surface.View()
		}
		writeJSON(w, resp)
	}
}

// ConnectFeedHandler handles POST /api/v1/feed/connect. A closed feed stays
// closed until this is called.
func ConnectFeedHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Feed == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "feed_unavailable", "No feed configured")
			return
		}
		err := deps.Feed.Connect(r.Context())
		if err != nil && !errors.Is(err, feed.ErrAlreadyConnected) {
			slog.Warn("api.feed.connect_failed",
				"component", "api",
				"event", "feed.connect_error",
				"error", err,
			)
			writeJSONError(w, http.StatusBadGateway, "feed_connect_failed", err.Error())
			return
		}
		writeJSON(w, buildState(deps))
	}
}
