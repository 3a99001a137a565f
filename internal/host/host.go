// Package host implements the Virtualization Host (spec §4.1): the
// top-level lifecycle state machine that brings a projection root into
// existence, registers the platform.Callbacks surface, and wires the
// Content Cache, Async Bridge, Enumeration Engine, Placeholder Resolver,
// Data Delivery Engine, and Notification Policy together.
package host

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wisptree/vprojfs/internal/bridge"
	"github.com/wisptree/vprojfs/internal/cache"
	"github.com/wisptree/vprojfs/internal/config"
	"github.com/wisptree/vprojfs/internal/delivery"
	"github.com/wisptree/vprojfs/internal/enum"
	"github.com/wisptree/vprojfs/internal/host/platform"
	"github.com/wisptree/vprojfs/internal/logicalfs"
	"github.com/wisptree/vprojfs/internal/notify"
	"github.com/wisptree/vprojfs/internal/objectstore"
	"github.com/wisptree/vprojfs/internal/placeholder"
	"github.com/wisptree/vprojfs/internal/telemetry"
)

var log = telemetry.WithComponent("host")

// defaultRegenerationPrefixes names the top-level namespaces whose deletion
// notifications trigger tombstone repair (spec.md §8 scenario 5: a file
// under /invites is deleted and then regenerated).
var defaultRegenerationPrefixes = []string{"/invites"}

// State is the Virtualization Host's lifecycle (spec §4.9).
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

// Host wires every core component into a single platform.Callbacks
// implementation (spec §4.1).
type Host struct {
	cfg      config.Config
	fs       logicalfs.Filesystem
	provider platform.Provider

	cache        *cache.Cache
	bridge       *bridge.Bridge
	objects      *objectstore.Reader
	enumEngine   *enum.Engine
	resolver     *placeholder.Resolver
	delivery     *delivery.Engine
	notifyPolicy *notify.Policy

	mu         sync.Mutex
	state      State
	instance   platform.Instance
	instanceID uuid.UUID
	lastErr    error
}

// New wires all components for cfg and fs, but does not start the
// projection; call Start for that.
func New(cfg config.Config, fs logicalfs.Filesystem, provider platform.Provider) *Host {
	c := cache.New(time.Duration(cfg.CacheTTL))
	objects := objectstore.New(cfg.InstancePath)

	h := &Host{
		cfg:      cfg,
		fs:       fs,
		provider: provider,
		cache:    c,
		objects:  objects,
		state:    StateStopped,
	}
	h.bridge = bridge.New(fs, c, nil, h.onContentReady)
	h.delivery = delivery.New(c, h.bridge, objects, provider)
	h.enumEngine = enum.New(c, h.bridge, objects, provider)
	h.resolver = placeholder.New(c, h.bridge, objects)
	h.notifyPolicy = notify.New(c, h, defaultRegenerationPrefixes)
	return h
}

// Start brings the projection root into existence (spec §4.1 "start").
func (h *Host) Start() error {
	h.mu.Lock()
	if h.state != StateStopped {
		h.mu.Unlock()
		return fmt.Errorf("host: already running")
	}
	h.state = StateStarting
	h.mu.Unlock()

	// spec §4.1 "start" begins by ensuring the root directory exists:
	// PrjMarkDirectoryAsPlaceholder requires an existing, empty directory.
	if err := os.MkdirAll(h.cfg.VirtualRoot, 0o755); err != nil {
		return h.fail(fmt.Errorf("host: create virtual root: %w", err))
	}

	if err := h.provider.ClearStaleState(h.cfg.VirtualRoot); err != nil {
		return h.fail(fmt.Errorf("host: clear stale state: %w", err))
	}

	instanceID := uuid.New()
	if err := h.provider.MarkDirectoryAsPlaceholder(h.cfg.VirtualRoot, instanceID); err != nil {
		return h.fail(fmt.Errorf("host: mark-root failed: %w", err))
	}

	instance, err := h.provider.Start(h.cfg.VirtualRoot, h, h.cfg.Debug)
	if err != nil {
		return h.fail(fmt.Errorf("host: start-virtualization failed: %w", err))
	}

	h.mu.Lock()
	h.instance = instance
	h.instanceID = instanceID
	h.lastErr = nil
	h.mu.Unlock()

	h.delivery.SetInstance(instance)
	h.bridge.Start()

	h.mu.Lock()
	h.state = StateRunning
	h.mu.Unlock()
	log.WithField("instance", instanceID).Info("virtualization host started")
	return nil
}

func (h *Host) fail(err error) error {
	h.mu.Lock()
	h.state = StateStopped
	h.lastErr = err
	h.mu.Unlock()
	log.WithError(err).Error("virtualization host failed to start")
	return err
}

// Stop tears down virtualization in LIFO order relative to Start.
// Idempotent (spec §4.1 "stop").
func (h *Host) Stop() error {
	h.mu.Lock()
	if h.state == StateStopped || h.state == StateStopping {
		h.mu.Unlock()
		return nil
	}
	h.state = StateStopping
	instance := h.instance
	h.mu.Unlock()

	h.bridge.Stop()
	var err error
	if instance != nil {
		err = instance.Stop()
	}

	h.mu.Lock()
	h.state = StateStopped
	h.instance = nil
	h.mu.Unlock()
	return err
}

// IsRunning reports whether the host is in the RUNNING state.
func (h *Host) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == StateRunning
}

// LastError returns the error from the most recent failed Start, if any.
func (h *Host) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// Stats aggregates the Content Cache's running counters (spec §4.1
// "stats()").
func (h *Host) Stats() cache.Stats {
	return h.cache.Stats()
}

// InvalidateTombstone asks the platform to forget a prior deletion of path
// and drops the local cache for it (spec §4.1 "invalidate_tombstone").
// Host implements notify.TombstoneInvalidator.
func (h *Host) InvalidateTombstone(path string) error {
	h.cache.Invalidate(path)
	h.mu.Lock()
	instance := h.instance
	h.mu.Unlock()
	if instance == nil {
		return nil
	}
	return h.provider.ClearNegativePathCache(instance, path)
}

func (h *Host) onContentReady(path string) {
	h.delivery.CompletePending(path)
}

// GetPlaceholderInfo implements platform.Callbacks.
func (h *Host) GetPlaceholderInfo(path string) (platform.FileInfo, platform.Status) {
	if !h.IsRunning() {
		return platform.FileInfo{}, platform.StatusBusy
	}
	return h.resolver.Resolve(path)
}

// GetFileData implements platform.Callbacks.
func (h *Host) GetFileData(path string, commandID int32, offset, length uint64, handle platform.FileHandle) platform.Status {
	if !h.IsRunning() {
		return platform.StatusBusy
	}
	return h.delivery.Serve(path, commandID, offset, length, handle)
}

// QueryFileName implements platform.Callbacks. Case-insensitive matching is
// unsupported (spec.md Non-goals), so this always reports not-found, matching
// the ground-truth QueryFileNameCallback in
// original_source/src/projfs_provider.cpp, which unconditionally returns
// ERROR_FILE_NOT_FOUND with the comment "we don't support case-insensitive
// matching."
func (h *Host) QueryFileName(path string) platform.Status {
	if !h.IsRunning() {
		return platform.StatusBusy
	}
	return platform.StatusNotFound
}

// StartDirectoryEnumeration implements platform.Callbacks.
func (h *Host) StartDirectoryEnumeration(sessionID uuid.UUID, path string) platform.Status {
	if !h.IsRunning() {
		return platform.StatusBusy
	}
	return h.enumEngine.Start(sessionID, path)
}

// GetDirectoryEnumeration implements platform.Callbacks.
func (h *Host) GetDirectoryEnumeration(sessionID uuid.UUID, pattern string, restartScan bool, w platform.DirEntryWriter) platform.Status {
	if !h.IsRunning() {
		return platform.StatusBusy
	}
	return h.enumEngine.Get(sessionID, pattern, restartScan, w)
}

// EndDirectoryEnumeration implements platform.Callbacks.
func (h *Host) EndDirectoryEnumeration(sessionID uuid.UUID) platform.Status {
	return h.enumEngine.End(sessionID)
}

// Notify implements platform.Callbacks.
func (h *Host) Notify(path string, kind platform.NotificationKind, isDirectory bool) platform.Status {
	return h.notifyPolicy.Classify(path, kind, isDirectory)
}
