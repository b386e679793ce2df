package handlers

import (
	"context"

	"github.com/m0rjc/DeviceConsole/internal/console"
	"github.com/m0rjc/DeviceConsole/internal/db"
	"github.com/m0rjc/DeviceConsole/internal/mapview"
)

// FeedStatus is the data feed as seen by the API.
type FeedStatus interface {
	IsConnected() bool
	Connect(ctx context.Context) error
}

type Dependencies struct {
	Console *console.Console
	Feed    FeedStatus
	// Surface is what the map endpoint serves.
	Surface *mapview.MemorySurface
	// Conns holds whichever storage connections are configured. Either
	// field may be nil.
	Conns *db.Connections
}
