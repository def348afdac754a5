package devices

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"roost/pkg/logging"
)

// DefaultAutosaveInterval is used when the registry is constructed with a
// zero interval.
const DefaultAutosaveInterval = 30 * time.Second

// registryFile is the on-disk shape of the device store.
type registryFile struct {
	LastUpdated time.Time `json:"lastUpdated"`
	Devices     []Device  `json:"devices"`
}

// Registry is the durable device store. All mutations are serialized by a
// single mutex; readers receive defensive copies. The in-memory map is
// periodically persisted to a JSON file using a temp-file-then-rename
// sequence so a crash mid-write never corrupts the previous snapshot.
type Registry struct {
	mu          sync.Mutex
	path        string
	interval    time.Duration
	devices     map[string]*Device
	lastUpdated time.Time
	dirty       bool
}

// NewRegistry creates a registry persisting to path. Call Load to pick up
// an existing file and Run to start the autosave loop.
func NewRegistry(path string, interval time.Duration) *Registry {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	return &Registry{
		path:     path,
		interval: interval,
		devices:  make(map[string]*Device),
	}
}

// Load reads the registry file if present. A missing file yields an empty
// registry; a corrupt file is logged and likewise treated as empty, never
// as a fatal startup error.
func (r *Registry) Load() {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("DeviceRegistry", "Cannot read %s, starting empty: %v", r.path, err)
		}
		return
	}

	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		logging.Warn("DeviceRegistry", "Corrupt registry file %s, starting empty: %v", r.path, err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastUpdated = file.LastUpdated
	r.devices = make(map[string]*Device, len(file.Devices))
	for i := range file.Devices {
		d := file.Devices[i]
		r.devices[d.ID] = &d
	}
	logging.Info("DeviceRegistry", "Loaded %d devices from %s", len(r.devices), r.path)
}

// Upsert inserts or replaces a device by id.
func (r *Registry) Upsert(device Device) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := device.Clone()
	r.devices[d.ID] = &d
	r.touchLocked()
}

// Get returns a copy of the device with the given id.
func (r *Registry) Get(id string) (Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return Device{}, false
	}
	return d.Clone(), true
}

// GetAll returns a snapshot of every known device, sorted by id.
func (r *Registry) GetAll() []Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(func(d *Device) bool { return true })
}

// GetConnected returns a snapshot of devices currently in the Connected
// state, sorted by id.
func (r *Registry) GetConnected() []Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(func(d *Device) bool { return d.State == StateConnected })
}

// Prune removes a device by id. Devices are never removed implicitly.
func (r *Registry) Prune(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return false
	}
	delete(r.devices, id)
	r.touchLocked()
	return true
}

// LastUpdated returns the timestamp of the most recent mutation.
func (r *Registry) LastUpdated() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastUpdated
}

// Flush persists the current device list immediately.
func (r *Registry) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked()
}

// Run persists the registry on every tick until the context is cancelled,
// then performs a final flush. Intended to run in its own goroutine.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := r.Flush(); err != nil {
				logging.Error("DeviceRegistry", err, "Final flush failed")
			}
			return
		case <-ticker.C:
			r.mu.Lock()
			dirty := r.dirty
			r.mu.Unlock()
			if !dirty {
				continue
			}
			if err := r.Flush(); err != nil {
				logging.Error("DeviceRegistry", err, "Autosave failed")
			}
		}
	}
}

func (r *Registry) touchLocked() {
	r.lastUpdated = time.Now()
	r.dirty = true
}

func (r *Registry) snapshotLocked(keep func(*Device) bool) []Device {
	result := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		if keep(d) {
			result = append(result, d.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// saveLocked writes the registry to a temp file in the target directory and
// renames it over the destination. Must be called with the mutex held.
func (r *Registry) saveLocked() error {
	file := registryFile{
		LastUpdated: r.lastUpdated,
		Devices:     r.snapshotLocked(func(d *Device) bool { return true }),
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal device registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create registry directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp registry file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp registry file: %w", err)
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace registry file: %w", err)
	}

	r.dirty = false
	logging.Debug("DeviceRegistry", "Persisted %d devices to %s", len(file.Devices), r.path)
	return nil
}
