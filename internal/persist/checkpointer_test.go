package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m0rjc/DeviceConsole/internal/appstate"
	"github.com/m0rjc/DeviceConsole/internal/mapview"
	"github.com/m0rjc/DeviceConsole/internal/registry"
	"github.com/m0rjc/DeviceConsole/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory BlobStore that can be told to fail writes.
type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	sets    int
	failSet error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (m *memStore) Set(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	m.sets++
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStore) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *memStore) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

func sampleDevices() (map[int]types.Device, []types.Group) {
	devices := map[int]types.Device{
		1: {ID: 1, Name: "Gate", Channels: 2, Lat: 55.75, Lon: 37.61},
		2: {ID: 2, Name: "Yard", Channels: 4, Lat: 55.76, Lon: 37.62, Alarm: true},
	}
	groups := []types.Group{{ID: 10, Name: "Site", DeviceIDs: []int{1}}}
	return devices, groups
}

func TestCheckpointer_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)

	reg := registry.New()
	app := appstate.New()
	mv := mapview.NewSynchronizer()

	devices, groups := sampleDevices()
	reg.SetDevicesData(devices, groups)
	reg.ToggleDeviceSelection(2, types.ModeOnline)
	reg.ToggleCameraSelection(2, 3, types.ModeOnline)
	app.ToggleMode()
	app.SetSearchQuery("yard")
	app.ToggleGroup(10)

	cp := NewCheckpointer(store, time.Millisecond, reg, app, mv)
	cp.MarkDirty(reg.SnapshotID())
	cp.MarkDirty(app.SnapshotID())
	cp.MarkDirty(mv.SnapshotID())
	require.NoError(t, cp.Flush(ctx))
	assert.Equal(t, 0, cp.Pending())

	reg2 := registry.New()
	app2 := appstate.New()
	mv2 := mapview.NewSynchronizer()
	NewCheckpointer(store, time.Millisecond, reg2, app2, mv2).Restore(ctx)

	assert.Equal(t, reg.Devices(), reg2.Devices())
	assert.Equal(t, []int{2}, reg2.UngroupedDeviceIDs())
	assert.Equal(t, []int{3}, reg2.SelectedCameras(2, types.ModeOnline))
	assert.Equal(t, types.ModeArchive, app2.Mode())
	assert.Equal(t, "yard", app2.SearchQuery())
	assert.True(t, app2.IsGroupCollapsed(10))
	assert.Equal(t, mv.Camera(), mv2.Camera())
}

func TestCheckpointer_RestoreIgnoresMissingAndCorrupt(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.data[Key(appstate.SnapshotID)] = []byte(`{not json`)

	reg := registry.New()
	app := appstate.New()

	NewCheckpointer(store, 0, reg, app).Restore(ctx)

	assert.Equal(t, types.ModeOnline, app.Mode())
	assert.Empty(t, reg.Devices())
}

func TestCheckpointer_DebouncedFlush(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newMemStore()
	app := appstate.New()
	cp := NewCheckpointer(store, 20*time.Millisecond, app)
	app.SetOnChange(cp.Hook(app))
	cp.Start(ctx)

	app.ToggleGroup(1)
	app.ToggleGroup(2)
	app.SetSearchQuery("gate")

	require.Eventually(t, func() bool {
		return store.setCount() > 0 && cp.Pending() == 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, store.setCount(), "burst of changes should be coalesced into one write")

	data, err := store.Get(ctx, Key(appstate.SnapshotID))
	require.NoError(t, err)
	restored := appstate.New()
	require.NoError(t, restored.RestoreSnapshot(data))
	assert.Equal(t, "gate", restored.SearchQuery())

	require.NoError(t, cp.Stop(ctx))
}

func TestCheckpointer_FailedSaveStaysDirty(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.failSet = errors.New("store offline")

	app := appstate.New()
	cp := NewCheckpointer(store, time.Millisecond, app)
	cp.MarkDirty(app.SnapshotID())

	err := cp.Flush(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store offline")
	assert.Equal(t, 1, cp.Pending())

	store.failSet = nil
	require.NoError(t, cp.Stop(ctx))
	assert.Equal(t, 0, cp.Pending())
	assert.Equal(t, 1, store.setCount())
}

func TestCheckpointer_IgnoresUnknownOwner(t *testing.T) {
	cp := NewCheckpointer(newMemStore(), 0, appstate.New())
	cp.MarkDirty("nope")
	assert.Equal(t, 0, cp.Pending())
}
