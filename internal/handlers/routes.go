package handlers

import "net/http"

// RegisterAPI mounts the console API on mux.
func RegisterAPI(mux *http.ServeMux, deps *Dependencies) {
	mux.HandleFunc("GET /api/v1/devices", GetDevicesHandler(deps))
	mux.HandleFunc("GET /api/v1/tree", GetTreeHandler(deps))
	mux.HandleFunc("GET /api/v1/state", GetStateHandler(deps))
	mux.HandleFunc("GET /api/v1/map", GetMapHandler(deps))

	mux.HandleFunc("POST /api/v1/mode/toggle", ToggleModeHandler(deps))
	mux.HandleFunc("PUT /api/v1/search", SetSearchHandler(deps))
	mux.HandleFunc("POST /api/v1/selection/clear", ClearSelectionHandler(deps))
	mux.HandleFunc("POST /api/v1/feed/connect", ConnectFeedHandler(deps))

	mux.HandleFunc("POST /api/v1/devices/{id}/select", SelectDeviceHandler(deps))
	mux.HandleFunc("POST /api/v1/devices/{id}/cameras/{camera}", ToggleCameraHandler(deps))
	mux.HandleFunc("PATCH /api/v1/devices/{id}", PatchDeviceHandler(deps))
	mux.HandleFunc("DELETE /api/v1/devices/{id}", DeleteDeviceHandler(deps))
	mux.HandleFunc("POST /api/v1/devices/{id}/collapse", ToggleDeviceCollapseHandler(deps))
	mux.HandleFunc("POST /api/v1/devices/{id}/menu", OpenMenuHandler(deps))
	mux.HandleFunc("DELETE /api/v1/menu", CloseMenuHandler(deps))
	mux.HandleFunc("POST /api/v1/groups/{id}/collapse", ToggleGroupCollapseHandler(deps))
}
