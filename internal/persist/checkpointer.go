package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/m0rjc/DeviceConsole/internal/metrics"
)

// DefaultDebounce is used when a Checkpointer is created with a zero debounce.
const DefaultDebounce = 500 * time.Millisecond

// Owner is a piece of console state that can be saved as one blob.
type Owner interface {
	SnapshotID() string
	MarshalSnapshot() ([]byte, error)
	RestoreSnapshot(data []byte) error
}

// Checkpointer writes dirty owners to a BlobStore in the background.
// Changes are coalesced: a flush happens once the debounce interval has
// passed since the first unsaved change.
type Checkpointer struct {
	store    BlobStore
	debounce time.Duration
	owners   []Owner
	byID     map[string]Owner

	mu      sync.Mutex
	dirty   map[string]bool
	running bool

	flushMu  sync.Mutex
	kick     chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewCheckpointer creates a checkpointer for the given owners.
func NewCheckpointer(store BlobStore, debounce time.Duration, owners ...Owner) *Checkpointer {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	c := &Checkpointer{
		store:    store,
		debounce: debounce,
		owners:   owners,
		byID:     make(map[string]Owner, len(owners)),
		dirty:    make(map[string]bool),
		kick:     make(chan struct{}, 1),
	}
	for _, o := range owners {
		c.byID[o.SnapshotID()] = o
	}
	return c
}

// Hook returns a change callback that marks owner dirty.
func (c *Checkpointer) Hook(owner Owner) func() {
	id := owner.SnapshotID()
	return func() { c.MarkDirty(id) }
}

// Restore rehydrates every owner from the store. Missing or unreadable
// snapshots are logged and skipped so the owner keeps its empty state.
func (c *Checkpointer) Restore(ctx context.Context) {
	for _, o := range c.owners {
		id := o.SnapshotID()
		data, err := c.store.Get(ctx, Key(id))
		if errors.Is(err, ErrNotFound) {
			metrics.SnapshotOperations.WithLabelValues(id, "restore", "missing").Inc()
			slog.Debug("persist.restore.missing",
				"component", "persist",
				"event", "restore.missing",
				"owner", id,
			)
			continue
		}
		if err != nil {
			metrics.SnapshotOperations.WithLabelValues(id, "restore", "error").Inc()
			slog.Warn("persist.restore.load_failed",
				"component", "persist",
				"event", "restore.load_error",
				"owner", id,
				"error", err,
			)
			continue
		}
		if err := o.RestoreSnapshot(data); err != nil {
			metrics.SnapshotOperations.WithLabelValues(id, "restore", "corrupt").Inc()
			slog.Warn("persist.restore.corrupt",
				"component", "persist",
				"event", "restore.corrupt",
				"owner", id,
				"error", err,
			)
			continue
		}
		metrics.SnapshotOperations.WithLabelValues(id, "restore", "success").Inc()
		slog.Info("persist.restore.loaded",
			"component", "persist",
			"event", "restore.loaded",
			"owner", id,
			"bytes", len(data),
		)
	}
}

// MarkDirty records that an owner changed. Unknown ids are ignored.
func (c *Checkpointer) MarkDirty(ownerID string) {
	if _, ok := c.byID[ownerID]; !ok {
		return
	}
	c.mu.Lock()
	c.dirty[ownerID] = true
	c.mu.Unlock()

	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Pending reports how many owners have unsaved changes.
func (c *Checkpointer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dirty)
}

// Flush writes every dirty owner. Owners that fail to save stay dirty and
// are retried on the next flush.
func (c *Checkpointer) Flush(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	ids := make([]string, 0, len(c.dirty))
	for _, o := range c.owners {
		if c.dirty[o.SnapshotID()] {
			ids = append(ids, o.SnapshotID())
		}
	}
	c.dirty = make(map[string]bool)
	c.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { metrics.SnapshotFlushDuration.Observe(time.Since(start).Seconds()) }()

	var errs []error
	for _, id := range ids {
		if err := c.save(ctx, c.byID[id]); err != nil {
			errs = append(errs, err)
			c.mu.Lock()
			c.dirty[id] = true
			c.mu.Unlock()
		}
	}
	return errors.Join(errs...)
}

func (c *Checkpointer) save(ctx context.Context, o Owner) error {
	id := o.SnapshotID()
	data, err := o.MarshalSnapshot()
	if err == nil {
		err = c.store.Set(ctx, Key(id), data)
	}
	if err != nil {
		metrics.SnapshotOperations.WithLabelValues(id, "save", "error").Inc()
		slog.Error("persist.save.failed",
			"component", "persist",
			"event", "save.error",
			"owner", id,
			"error", err,
		)
		return fmt.Errorf("save %s: %w", id, err)
	}
	metrics.SnapshotOperations.WithLabelValues(id, "save", "success").Inc()
	slog.Debug("persist.save.done",
		"component", "persist",
		"event", "save.success",
		"owner", id,
		"bytes", len(data),
	)
	return nil
}

// Start launches the background flush worker.
func (c *Checkpointer) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}
	c.running = true
	c.stopChan = make(chan struct{})

	c.wg.Add(1)
	go c.loop(ctx, c.stopChan)

	slog.Info("persist.checkpointer.started",
		"component", "persist",
		"event", "checkpointer.started",
		"owners", len(c.owners),
		"debounce", c.debounce,
	)
}

// Stop halts the worker and writes any remaining changes.
func (c *Checkpointer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		close(c.stopChan)
		c.running = false
	}
	c.mu.Unlock()

	c.wg.Wait()

	err := c.Flush(ctx)
	slog.Info("persist.checkpointer.stopped",
		"component", "persist",
		"event", "checkpointer.stopped",
	)
	return err
}

func (c *Checkpointer) loop(ctx context.Context, stop <-chan struct{}) {
	defer c.wg.Done()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-c.kick:
		}

		timer := time.NewTimer(c.debounce)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		// Errors are logged per owner and retried on the next change.
		_ = c.Flush(ctx)
	}
}
